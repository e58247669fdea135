package server

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/log"
)

// ListenerGroup runs one server daemon process per port. Each child is a
// fresh process with its own listener, so listeners cannot share heap state
// and a crash in one cannot take down the others.
type ListenerGroup struct {
	// Binary is the server daemon executable. Defaults to the current
	// executable, which lets the daemon re-exec itself.
	Binary string
	// Mode is the per-process concurrency shell (pool or spawn).
	Mode Mode
	// Workers is forwarded to each child's pool.
	Workers int
	// Store is the storage spec forwarded to each child (a directory path
	// or an s3:// URL).
	Store string
	// ReadyTimeout bounds how long to wait for each child's ready frame.
	// Defaults to 10 seconds.
	ReadyTimeout time.Duration

	Logger *log.Logger

	procs []*exec.Cmd
}

// Listener identifies one running child process.
type Listener struct {
	PID  int
	Port int
}

// Start launches one child per port and waits for every child to report
// readiness over its stdout frame stream. On any failure the children
// started so far are stopped.
func (g *ListenerGroup) Start(ctx context.Context, ports []int) ([]Listener, error) {
	binary := g.Binary
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		binary = self
	}
	readyTimeout := g.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 10 * time.Second
	}

	listeners := make([]Listener, 0, len(ports))
	for _, port := range ports {
		l, err := g.startOne(ctx, binary, port, readyTimeout)
		if err != nil {
			g.Stop()
			return nil, fmt.Errorf("start listener on port %d: %w", port, err)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

func (g *ListenerGroup) startOne(ctx context.Context, binary string, port int, readyTimeout time.Duration) (Listener, error) {
	args := []string{
		"serve",
		"--addr", ":" + strconv.Itoa(port),
		"--mode", string(g.Mode),
		"--store", g.Store,
		"--ipc",
	}
	if g.Workers > 0 {
		args = append(args, "--workers", strconv.Itoa(g.Workers))
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Listener{}, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Listener{}, fmt.Errorf("spawn: %w", err)
	}
	g.procs = append(g.procs, cmd)

	readyCh := make(chan *ipc.ReadyEvent, 1)
	errCh := make(chan error, 1)
	go func() {
		event, err := ipc.NewDecoder(stdout).ReadEvent()
		if err != nil {
			errCh <- err
			return
		}
		ready, ok := event.(*ipc.ReadyEvent)
		if !ok {
			errCh <- fmt.Errorf("first frame is %T, want ready", event)
			return
		}
		readyCh <- ready
	}()

	select {
	case ready := <-readyCh:
		if g.Logger != nil {
			g.Logger.Info("listener ready",
				zap.Int("pid", ready.PID),
				zap.Int("port", ready.Port),
				zap.String("mode", ready.Mode),
			)
		}
		return Listener{PID: ready.PID, Port: ready.Port}, nil
	case err := <-errCh:
		return Listener{}, fmt.Errorf("read ready frame: %w", err)
	case <-time.After(readyTimeout):
		return Listener{}, fmt.Errorf("no ready frame within %s", readyTimeout)
	case <-ctx.Done():
		return Listener{}, ctx.Err()
	}
}

// Stop terminates every child with SIGTERM and reaps it. Children that
// already exited are reaped without error.
func (g *ListenerGroup) Stop() {
	for _, cmd := range g.procs {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}
	for _, cmd := range g.procs {
		_ = cmd.Wait()
	}
	g.procs = nil
}
