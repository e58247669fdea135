package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/adapter"
	adapterredis "github.com/pithecene-io/ferry/adapter/redis"
	adapterwebhook "github.com/pithecene-io/ferry/adapter/webhook"
	"github.com/pithecene-io/ferry/cli/config"
	"github.com/pithecene-io/ferry/cli/tui"
	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/launch"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/server"
	"github.com/pithecene-io/ferry/stress"
)

// SweepCommand returns the benchmark sweep command: the full grid of mode,
// operation, volume, and pool sizes, one fresh server process per scenario.
func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run the full benchmark grid and record results to CSV",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "output",
				Usage: "Results CSV path (default: orchestrator_results_<ts>.csv)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Storage spec handed to server processes",
			},
			&cli.StringFlag{
				Name:  "server-bin",
				Usage: "Server daemon binary (default: ferryd next to this binary)",
			},
			&cli.IntFlag{
				Name:  "base-port",
				Usage: "First port for scenario servers",
				Value: 46000,
			},
			&cli.StringSliceFlag{
				Name:  "modes",
				Usage: "Server modes to sweep",
			},
			&cli.StringSliceFlag{
				Name:  "operations",
				Usage: "Operations to sweep",
			},
			&cli.IntSliceFlag{
				Name:  "volumes",
				Usage: "Payload sizes in MB to sweep",
			},
			&cli.IntSliceFlag{
				Name:  "server-workers",
				Usage: "Server pool sizes to sweep",
			},
			&cli.IntSliceFlag{
				Name:  "client-workers",
				Usage: "Client pool sizes to sweep",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show the live dashboard while the sweep runs",
			},
		},
		Action: sweepAction,
	}
}

func sweepAction(c *cli.Context) error {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		cfg = loaded
	}

	grid, err := buildGrid(c, cfg.Sweep)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	store := firstNonEmpty(c.String("store"), cfg.Storage.Path)
	if store == "" {
		dir, err := os.MkdirTemp("", "ferry-sweep-*")
		if err != nil {
			return cli.Exit(fmt.Sprintf("create sweep store: %v", err), 1)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		store = dir
	}

	serverBin, clientBin, err := resolveBinaries(c.String("server-bin"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	output := firstNonEmpty(c.String("output"), cfg.Sweep.Output,
		fmt.Sprintf("orchestrator_results_%s.csv", time.Now().Format("20060102_150405")))
	results, err := launch.NewResultWriter(output)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer iox.DiscardClose(results)

	adapters, err := buildAdapters(cfg.Adapter)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	for _, a := range adapters {
		defer iox.DiscardClose(a)
	}

	logger := log.NewLogger(log.ServerIdentity{PID: os.Getpid()})
	o := &launch.Orchestrator{
		ServerBinary:    serverBin,
		ClientBinary:    clientBin,
		Store:           store,
		BasePort:        firstPositive(c.Int("base-port"), cfg.Sweep.BasePort),
		ScenarioTimeout: cfg.Sweep.Timeout.Duration,
		Results:         results,
		Adapters:        adapters,
		Logger:          logger,
	}

	if c.Bool("tui") {
		return runSweepWithDashboard(c, o, grid)
	}
	if err := o.Run(c.Context, grid); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(c.App.Writer, "sweep complete: %d scenarios recorded to %s\n",
		len(grid.Scenarios()), output)
	return nil
}

// runSweepWithDashboard runs the orchestrator in the background and feeds
// its per-scenario results into the Bubble Tea dashboard. Quitting the
// dashboard cancels the sweep; every send toward the dashboard races the
// cancellation, so an exited dashboard never strands the sweep goroutine.
func runSweepWithDashboard(c *cli.Context, o *launch.Orchestrator, grid launch.Grid) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	events := make(chan tea.Msg)
	o.OnResult = feedDashboard(ctx, events)

	errCh := make(chan error, 1)
	go func() {
		err := o.Run(ctx, grid)
		select {
		case events <- tui.DoneMsg{Err: err}:
		case <-ctx.Done():
		}
		errCh <- err
	}()

	runErr := tui.RunSweep(len(grid.Scenarios()), events)
	cancel()
	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// feedDashboard adapts orchestrator results into dashboard messages. A
// result arriving after the dashboard exited is dropped, not delivered: the
// CSV writer is the sweep's record, the dashboard only observes.
func feedDashboard(ctx context.Context, events chan<- tea.Msg) func(launch.Scenario, *ipc.ResultEvent) {
	return func(sc launch.Scenario, result *ipc.ResultEvent) {
		select {
		case events <- tui.ResultMsg{Scenario: sc, Result: result}:
		case <-ctx.Done():
		}
	}
}

// buildGrid assembles the sweep grid: flags override config, config
// overrides the default grid, dimension by dimension.
func buildGrid(c *cli.Context, cfg config.SweepConfig) (launch.Grid, error) {
	grid := launch.DefaultGrid()

	modes := c.StringSlice("modes")
	if len(modes) == 0 {
		modes = cfg.Modes
	}
	if len(modes) > 0 {
		grid.Modes = grid.Modes[:0]
		for _, m := range modes {
			mode, err := server.ParseMode(m)
			if err != nil {
				return launch.Grid{}, err
			}
			grid.Modes = append(grid.Modes, mode)
		}
	}

	ops := c.StringSlice("operations")
	if len(ops) == 0 {
		ops = cfg.Operations
	}
	if len(ops) > 0 {
		grid.Operations = grid.Operations[:0]
		for _, o := range ops {
			op, err := stress.ParseOperation(o)
			if err != nil {
				return launch.Grid{}, err
			}
			grid.Operations = append(grid.Operations, op)
		}
	}

	if v := c.IntSlice("volumes"); len(v) > 0 {
		grid.VolumesMB = v
	} else if len(cfg.VolumesMB) > 0 {
		grid.VolumesMB = cfg.VolumesMB
	}
	if v := c.IntSlice("server-workers"); len(v) > 0 {
		grid.ServerWorkers = v
	} else if len(cfg.ServerWorkers) > 0 {
		grid.ServerWorkers = cfg.ServerWorkers
	}
	if v := c.IntSlice("client-workers"); len(v) > 0 {
		grid.ClientWorkers = v
	} else if len(cfg.ClientWorkers) > 0 {
		grid.ClientWorkers = cfg.ClientWorkers
	}

	return grid, grid.Validate()
}

// resolveBinaries locates the server daemon and the stress client. The
// client is this binary; the daemon defaults to ferryd in the same
// directory.
func resolveBinaries(serverBin string) (string, string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", "", fmt.Errorf("resolve executable: %w", err)
	}
	if serverBin == "" {
		serverBin = filepath.Join(filepath.Dir(self), "ferryd")
	}
	if _, err := os.Stat(serverBin); err != nil {
		return "", "", fmt.Errorf("server binary %s: %w", serverBin, err)
	}
	return serverBin, self, nil
}

// buildAdapters constructs the configured results-delivery adapter, if any.
func buildAdapters(cfg config.AdapterConfig) ([]adapter.Adapter, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := adapterwebhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		a, err := adapterwebhook.New(adapterwebhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return []adapter.Adapter{a}, nil
	case "redis":
		retries := adapterredis.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		a, err := adapterredis.New(adapterredis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return []adapter.Adapter{a}, nil
	default:
		return nil, fmt.Errorf("unknown adapter type %q (want webhook or redis)", cfg.Type)
	}
}
