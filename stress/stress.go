// Package stress drives concurrent client load against one server and
// aggregates per-task latencies into a throughput report.
package stress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pithecene-io/ferry/client"
	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/log"
)

// Operation selects what each worker does.
type Operation string

const (
	// OpList issues a LIST per worker.
	OpList Operation = "list"
	// OpUpload uploads the payload once per worker.
	OpUpload Operation = "upload"
	// OpDownload downloads a pre-seeded file once per worker.
	OpDownload Operation = "download"
)

// ParseOperation validates an operation string from config or flags.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpList, OpUpload, OpDownload:
		return Operation(s), nil
	default:
		return "", fmt.Errorf("unknown operation %q (want list, upload or download)", s)
	}
}

// Runner fans one operation out across Clients concurrent workers, each on
// its own connection, and measures every task.
type Runner struct {
	// Addr is the server under load.
	Addr string
	// Operation is what each worker performs.
	Operation Operation
	// Clients is the worker count.
	Clients int
	// Payload is the data each worker uploads. Required for OpUpload.
	Payload []byte
	// Target is the stored name each worker downloads. Required for
	// OpDownload.
	Target string
	// Timeout bounds each worker's operation.
	Timeout time.Duration
	// Logger receives per-task failures. Nil disables logging.
	Logger *log.Logger
}

// Report is the aggregate outcome of one run.
type Report struct {
	Operation      Operation
	Clients        int
	Success        int
	Fail           int
	AvgSeconds     float64
	ThroughputBps  float64
	ElapsedSeconds float64
	// Bytes is the total payload volume moved by successful tasks.
	Bytes int64
}

// Event converts the report into the frame the orchestrator consumes.
// Mode and volume describe the scenario, which the runner itself does not
// know.
func (r Report) Event(mode string, volumeMB int) *ipc.ResultEvent {
	return &ipc.ResultEvent{
		Type:           ipc.ResultType,
		Mode:           mode,
		Operation:      string(r.Operation),
		VolumeMB:       volumeMB,
		Clients:        r.Clients,
		AvgSeconds:     r.AvgSeconds,
		ThroughputBps:  r.ThroughputBps,
		Success:        r.Success,
		Fail:           r.Fail,
		ElapsedSeconds: r.ElapsedSeconds,
	}
}

type taskResult struct {
	seconds float64
	bytes   int64
	err     error
}

// Run executes the configured load and blocks until every worker finishes.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if r.Clients <= 0 {
		return Report{}, fmt.Errorf("client count %d must be positive", r.Clients)
	}
	switch r.Operation {
	case OpUpload:
		if len(r.Payload) == 0 {
			return Report{}, fmt.Errorf("upload requires a payload")
		}
	case OpDownload:
		if r.Target == "" {
			return Report{}, fmt.Errorf("download requires a target name")
		}
	case OpList:
	default:
		return Report{}, fmt.Errorf("unknown operation %q", r.Operation)
	}

	results := make(chan taskResult, r.Clients)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < r.Clients; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c := &client.Client{Addr: r.Addr, Timeout: r.Timeout}
			taskStart := time.Now()
			n, err := r.runTask(ctx, c)
			res := taskResult{
				seconds: time.Since(taskStart).Seconds(),
				bytes:   n,
				err:     err,
			}
			if err != nil && r.Logger != nil {
				r.Logger.Warn("task failed",
					zap.Int("worker", worker),
					zap.String("operation", string(r.Operation)),
					zap.Error(err),
				)
			}
			results <- res
		}(i)
	}
	wg.Wait()
	close(results)

	report := Report{
		Operation:      r.Operation,
		Clients:        r.Clients,
		ElapsedSeconds: time.Since(start).Seconds(),
	}
	var latencySum float64
	for res := range results {
		if res.err != nil {
			report.Fail++
			continue
		}
		report.Success++
		report.Bytes += res.bytes
		latencySum += res.seconds
	}
	if report.Success > 0 {
		report.AvgSeconds = latencySum / float64(report.Success)
	}
	if report.ElapsedSeconds > 0 {
		report.ThroughputBps = float64(report.Bytes) / report.ElapsedSeconds
	}
	return report, nil
}

// runTask performs one operation and reports the payload bytes it moved.
func (r *Runner) runTask(ctx context.Context, c *client.Client) (int64, error) {
	switch r.Operation {
	case OpList:
		_, err := c.List(ctx)
		return 0, err
	case OpUpload:
		_, err := c.Upload(ctx, r.Payload)
		if err != nil {
			return 0, err
		}
		return int64(len(r.Payload)), nil
	case OpDownload:
		data, err := c.Get(ctx, r.Target)
		if err != nil {
			return 0, err
		}
		return int64(len(data)), nil
	default:
		return 0, fmt.Errorf("unknown operation %q", r.Operation)
	}
}
