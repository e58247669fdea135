package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/client"
	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/stress"
)

// StressCommand returns the load generation command: N concurrent workers
// performing one operation each against a server.
func StressCommand() *cli.Command {
	return &cli.Command{
		Name:  "stress",
		Usage: "Run concurrent load against a server",
		Flags: append([]cli.Flag{
			AddrFlag,
			&cli.StringFlag{
				Name:  "operation",
				Usage: "Operation per worker: list, upload, download",
				Value: string(stress.OpUpload),
			},
			&cli.IntFlag{
				Name:  "volume",
				Usage: "Payload size in MB",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  "clients",
				Usage: "Concurrent worker count",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Server mode label carried into the result (pool or spawn)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-worker operation timeout",
				Value: 5 * time.Minute,
			},
			&cli.StringFlag{
				Name:  "error-log",
				Usage: "Append per-task failures to this file instead of stderr",
			},
			&cli.StringFlag{
				Name:  "payload-dir",
				Usage: "Also write the generated payload to this directory",
			},
			IPCFlag,
		}, OutputFlags()...),
		Action: stressAction,
	}
}

// StressResponse is the human-facing result of one stress run.
type StressResponse struct {
	Operation     string  `json:"operation"`
	Clients       int     `json:"clients"`
	VolumeMB      int     `json:"volume_mb"`
	AvgSeconds    float64 `json:"avg_seconds"`
	Throughput    string  `json:"throughput"`
	ThroughputBps float64 `json:"throughput_bps"`
	Success       int     `json:"success"`
	Fail          int     `json:"fail"`
	Elapsed       float64 `json:"elapsed_seconds"`
}

// TableHeaders implements render.Tabular.
func (r StressResponse) TableHeaders() []string {
	return []string{"OPERATION", "CLIENTS", "VOLUME", "AVG", "THROUGHPUT", "OK", "FAIL"}
}

// TableRows implements render.Tabular.
func (r StressResponse) TableRows() [][]string {
	return [][]string{{
		r.Operation,
		strconv.Itoa(r.Clients),
		fmt.Sprintf("%dMB", r.VolumeMB),
		fmt.Sprintf("%.3fs", r.AvgSeconds),
		r.Throughput,
		strconv.Itoa(r.Success),
		strconv.Itoa(r.Fail),
	}}
}

func stressAction(c *cli.Context) error {
	op, err := stress.ParseOperation(c.String("operation"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	volume := c.Int("volume")
	if volume <= 0 {
		return cli.Exit(fmt.Sprintf("volume %d must be positive", volume), 2)
	}

	logger := log.NewLogger(log.ServerIdentity{PID: os.Getpid()})
	if path := c.String("error-log"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return cli.Exit(fmt.Sprintf("open error log: %v", err), 1)
		}
		defer iox.DiscardClose(f)
		logger = logger.WithOutput(f)
	}

	runner := &stress.Runner{
		Addr:      c.String("addr"),
		Operation: op,
		Clients:   c.Int("clients"),
		Timeout:   c.Duration("timeout"),
		Logger:    logger,
	}

	payload := stress.Payload(volume)
	if dir := c.String("payload-dir"); dir != "" {
		path, err := stress.WritePayloadFile(dir, volume)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		logger.Info("payload file written", zap.String("path", path))
	}
	switch op {
	case stress.OpUpload:
		runner.Payload = payload
	case stress.OpDownload:
		// Seed the file the workers will fetch.
		stored, err := client.New(runner.Addr).Upload(c.Context, payload)
		if err != nil {
			return cli.Exit(fmt.Sprintf("seed download target: %v", err), 1)
		}
		runner.Target = stored
	}

	report, err := runner.Run(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("ipc") {
		enc := ipc.NewEncoder(os.Stdout)
		if err := enc.WriteEvent(report.Event(c.String("mode"), volume)); err != nil {
			return cli.Exit(fmt.Sprintf("emit result frame: %v", err), 1)
		}
		return nil
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(StressResponse{
		Operation:     string(report.Operation),
		Clients:       report.Clients,
		VolumeMB:      volume,
		AvgSeconds:    report.AvgSeconds,
		Throughput:    stress.FormatRate(report.ThroughputBps),
		ThroughputBps: report.ThroughputBps,
		Success:       report.Success,
		Fail:          report.Fail,
		Elapsed:       report.ElapsedSeconds,
	})
}
