package launch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pithecene-io/ferry/adapter"
	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/server"
)

// Orchestrator runs one scenario at a time: start a fresh server process,
// run the client pool as a child process, collect its result frame, tear
// the server down, record the row. Fresh processes per scenario keep
// measurements independent; a leaked goroutine or hot cache in one cell
// cannot bleed into the next.
type Orchestrator struct {
	// ServerBinary is the server daemon executable.
	ServerBinary string
	// ClientBinary is the stress client executable.
	ClientBinary string
	// Store is the storage spec handed to each server process.
	Store string
	// BasePort is the first port used. Each scenario gets its own port so
	// lingering TIME_WAIT sockets never block a bind.
	BasePort int
	// ScenarioTimeout bounds each scenario end to end. Zero means 10
	// minutes.
	ScenarioTimeout time.Duration

	// Results receives one row per completed scenario. Required.
	Results *ResultWriter
	// Adapters receive a completion event per scenario. Adapter failures
	// are logged, never fatal; the sweep's source of truth is the CSV.
	Adapters []adapter.Adapter
	// OnResult, when set, observes each completed scenario. Used by the
	// live dashboard.
	OnResult func(Scenario, *ipc.ResultEvent)

	Logger *log.Logger
}

// Run executes every scenario in the grid. A failed scenario is logged and
// recorded as all-fail; the sweep continues.
func (o *Orchestrator) Run(ctx context.Context, grid Grid) error {
	if err := grid.Validate(); err != nil {
		return err
	}
	if o.Results == nil {
		return fmt.Errorf("orchestrator requires a result writer")
	}
	basePort := o.BasePort
	if basePort <= 0 {
		basePort = 46000
	}

	scenarios := grid.Scenarios()
	for i, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.Logger.Info("scenario starting",
			zap.String("scenario", sc.Name()),
			zap.Int("index", i+1),
			zap.Int("total", len(scenarios)),
		)

		result, err := o.runScenario(ctx, sc, basePort+i)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.Logger.Error("scenario failed", zap.String("scenario", sc.Name()), zap.Error(err))
			result = &ipc.ResultEvent{
				Type:      ipc.ResultType,
				Mode:      string(sc.Mode),
				Operation: string(sc.Operation),
				VolumeMB:  sc.VolumeMB,
				Clients:   sc.ClientWorkers,
				Fail:      sc.ClientWorkers,
			}
		}

		now := time.Now()
		if err := o.Results.Append(now, sc, result); err != nil {
			return fmt.Errorf("record scenario %s: %w", sc.Name(), err)
		}
		o.publish(ctx, sc, result, now)
		if o.OnResult != nil {
			o.OnResult(sc, result)
		}
	}
	return nil
}

// runScenario runs one grid cell against a dedicated server process.
func (o *Orchestrator) runScenario(ctx context.Context, sc Scenario, port int) (*ipc.ResultEvent, error) {
	timeout := o.ScenarioTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	group := &server.ListenerGroup{
		Binary:  o.ServerBinary,
		Mode:    sc.Mode,
		Workers: sc.ServerWorkers,
		Store:   o.Store,
		Logger:  o.Logger,
	}
	listeners, err := group.Start(ctx, []int{port})
	if err != nil {
		return nil, fmt.Errorf("start server: %w", err)
	}
	defer group.Stop()

	addr := "127.0.0.1:" + strconv.Itoa(listeners[0].Port)
	return o.runClientPool(ctx, sc, addr)
}

// runClientPool spawns the stress client as a child process and reads its
// result frame. The child runs in its own process group so a timeout kill
// reaps every worker it forked.
func (o *Orchestrator) runClientPool(ctx context.Context, sc Scenario, addr string) (*ipc.ResultEvent, error) {
	cmd := exec.CommandContext(ctx, o.ClientBinary,
		"stress",
		"--addr", addr,
		"--operation", string(sc.Operation),
		"--volume", strconv.Itoa(sc.VolumeMB),
		"--clients", strconv.Itoa(sc.ClientWorkers),
		"--mode", string(sc.Mode),
		"--ipc",
	)
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn client pool: %w", err)
	}

	var result *ipc.ResultEvent
	dec := ipc.NewDecoder(stdout)
	event, decodeErr := dec.ReadEvent()
	if decodeErr == nil {
		var ok bool
		if result, ok = event.(*ipc.ResultEvent); !ok {
			decodeErr = fmt.Errorf("client emitted %T, want result", event)
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("client pool exited: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("read result frame: %w", decodeErr)
	}
	return result, nil
}

// publish fans the completion event out to every adapter.
func (o *Orchestrator) publish(ctx context.Context, sc Scenario, result *ipc.ResultEvent, ts time.Time) {
	if len(o.Adapters) == 0 {
		return
	}
	event := &adapter.ScenarioCompletedEvent{
		EventType:      adapter.EventType,
		Mode:           string(sc.Mode),
		Operation:      string(sc.Operation),
		VolumeMB:       sc.VolumeMB,
		ServerWorkers:  sc.ServerWorkers,
		ClientWorkers:  sc.ClientWorkers,
		AvgSeconds:     result.AvgSeconds,
		ThroughputBps:  result.ThroughputBps,
		Success:        result.Success,
		Fail:           result.Fail,
		ElapsedSeconds: result.ElapsedSeconds,
		Timestamp:      ts.UTC().Format(time.RFC3339),
	}
	for _, a := range o.Adapters {
		if err := a.Publish(ctx, event); err != nil {
			o.Logger.Warn("adapter publish failed", zap.Error(err))
		}
	}
}
