package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/config"
	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/server"
	"github.com/pithecene-io/ferry/storage"
)

// ServeCommand returns the server daemon command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the file transfer server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
				Value: ":46000",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Concurrency mode: pool, spawn, or process",
				Value: string(server.ModePool),
			},
			&cli.IntFlag{
				Name:  "listeners",
				Usage: "Child listener processes (process mode)",
				Value: 3,
			},
			&cli.IntFlag{
				Name:  "base-port",
				Usage: "First child listener port (process mode)",
				Value: 46001,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Worker pool size (pool mode)",
			},
			&cli.IntFlag{
				Name:  "backlog",
				Usage: "Pending connection queue bound (pool mode)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Storage spec: a directory path or s3://bucket/prefix",
			},
			&cli.StringFlag{
				Name:  "scratch-dir",
				Usage: "Directory for in-flight upload spool files",
			},
			ConfigFlag,
			IPCFlag,
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		cfg = loaded
	}

	// Process mode is a supervisor, not a listener: one child daemon per
	// port, each a full OS process with its own heap and accept loop.
	if c.String("mode") == "process" {
		return serveProcessGroup(ctx, c, cfg)
	}

	srvCfg := server.Config{
		Addr:       firstNonEmpty(c.String("addr"), cfg.Server.Addr),
		Workers:    firstPositive(c.Int("workers"), cfg.Server.Workers),
		Backlog:    firstPositive(c.Int("backlog"), cfg.Server.Backlog),
		ScratchDir: firstNonEmpty(c.String("scratch-dir"), cfg.Server.ScratchDir),
	}
	mode, err := server.ParseMode(firstNonEmpty(c.String("mode"), cfg.Server.Mode, string(server.ModePool)))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	srvCfg.Mode = mode

	store, err := openStore(ctx, c.String("store"), cfg.Storage)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	srv, err := server.New(srvCfg, store, log.NewNop())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	port := srv.Addr().(*net.TCPAddr).Port

	srv.UseLogger(log.NewLogger(log.ServerIdentity{
		Mode: string(mode),
		Port: port,
		PID:  os.Getpid(),
	}))

	// In IPC mode the supervisor waits on this frame before pointing
	// clients at us.
	if c.Bool("ipc") {
		enc := ipc.NewEncoder(os.Stdout)
		if err := enc.WriteEvent(&ipc.ReadyEvent{
			Type: ipc.ReadyType,
			PID:  os.Getpid(),
			Port: port,
			Mode: string(mode),
		}); err != nil {
			return cli.Exit(fmt.Sprintf("emit ready frame: %v", err), 1)
		}
	}

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// serveProcessGroup runs process-per-listener mode: N child daemons in
// spawn mode on consecutive ports, supervised until a shutdown signal.
func serveProcessGroup(ctx context.Context, c *cli.Context, cfg *config.Config) error {
	listeners := c.Int("listeners")
	if listeners <= 0 {
		return cli.Exit(fmt.Sprintf("listener count %d must be positive", listeners), 2)
	}
	store := c.String("store")
	if store == "" {
		var err error
		if store, err = cfg.Storage.Spec(); err != nil {
			return cli.Exit(err.Error(), 2)
		}
	}

	logger := log.NewLogger(log.ServerIdentity{Mode: "process", PID: os.Getpid()})
	group := &server.ListenerGroup{
		Mode:    server.ModeSpawn,
		Workers: firstPositive(c.Int("workers"), cfg.Server.Workers),
		Store:   store,
		Logger:  logger,
	}

	base := c.Int("base-port")
	ports := make([]int, listeners)
	for i := range ports {
		ports[i] = base + i
	}
	if _, err := group.Start(ctx, ports); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	<-ctx.Done()
	group.Stop()
	return nil
}

// openStore resolves the storage backend: an explicit spec wins, then the
// config file's storage section.
func openStore(ctx context.Context, spec string, cfg config.StorageConfig) (storage.Store, error) {
	if spec == "" {
		var err error
		spec, err = cfg.Spec()
		if err != nil {
			return nil, err
		}
	}
	if cfg.Backend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.Bucket,
			Prefix:       cfg.Prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
	}
	return storage.Open(ctx, spec)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
