package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/storage"
)

// Mode selects the concurrency shell wrapped around the shared session core.
type Mode string

const (
	// ModePool serves connections from a fixed-size worker pool fed by a
	// bounded queue.
	ModePool Mode = "pool"
	// ModeSpawn starts a fresh handler goroutine per accepted connection.
	ModeSpawn Mode = "spawn"
)

// ParseMode validates a mode string from config or flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePool, ModeSpawn:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown server mode %q (want pool or spawn)", s)
	}
}

// Config describes one listener.
type Config struct {
	// Addr is the listen address, e.g. ":7000". A port of 0 picks a free
	// port; Server.Addr reports the bound address.
	Addr string
	// Mode selects pool or spawn concurrency. Defaults to pool.
	Mode Mode
	// Workers is the pool size in pool mode. Defaults to 5.
	Workers int
	// Backlog bounds the pool's pending-connection queue. Defaults to
	// Workers * 4. When the queue is full the accept loop blocks, letting
	// the kernel listen backlog absorb the burst.
	Backlog int
	// ScratchDir is where in-flight uploads are spooled. Empty means the
	// OS temp dir.
	ScratchDir string
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModePool
	}
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.Backlog <= 0 {
		c.Backlog = c.Workers * 4
	}
}

// Server accepts connections and runs a session per connection under the
// configured concurrency shell. Create with New, then call Serve.
type Server struct {
	cfg      Config
	dispatch *Dispatcher
	logger   *log.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// New binds the listener immediately so the caller knows the port before
// Serve starts accepting. Callers that need a readiness signal can report
// Addr as soon as New returns.
func New(cfg Config, store storage.Store, logger *log.Logger) (*Server, error) {
	cfg.applyDefaults()
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return &Server{
		cfg:      cfg,
		dispatch: NewDispatcher(store),
		logger:   logger,
		listener: ln,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// UseLogger swaps the logger before Serve starts. The daemon builds its
// identity-carrying logger from the bound port, which exists only after New.
func (s *Server) UseLogger(logger *log.Logger) {
	s.logger = logger
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and waits for in-flight sessions to drain.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("server listening",
		zap.String("addr", s.listener.Addr().String()),
		zap.String("mode", string(s.cfg.Mode)),
		zap.Int("workers", s.cfg.Workers),
	)

	// Cancellation unblocks Accept by closing the listener.
	stop := context.AfterFunc(ctx, func() {
		_ = s.listener.Close()
	})
	defer stop()

	var err error
	switch s.cfg.Mode {
	case ModeSpawn:
		err = s.serveSpawn(ctx)
	default:
		err = s.servePool(ctx)
	}

	s.wg.Wait()
	s.logger.Info("server drained")

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// serveSpawn runs one goroutine per connection.
func (s *Server) serveSpawn(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return s.acceptError(ctx, err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runSession(ctx, conn)
		}()
	}
}

// servePool feeds accepted connections through a bounded queue drained by a
// fixed set of workers. A full queue exerts backpressure on the accept loop
// rather than growing unboundedly.
func (s *Server) servePool(ctx context.Context) error {
	queue := make(chan net.Conn, s.cfg.Backlog)

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			wlog := s.logger.With(zap.Int("worker", worker))
			for conn := range queue {
				sess := NewSession(conn, s.dispatch, wlog, s.cfg.ScratchDir)
				if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					wlog.Warn("session ended with error", zap.Error(err))
				}
			}
		}(i)
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			close(queue)
			return s.acceptError(ctx, err)
		}
		select {
		case queue <- conn:
		case <-ctx.Done():
			_ = conn.Close()
			close(queue)
			return ctx.Err()
		}
	}
}

func (s *Server) runSession(ctx context.Context, conn net.Conn) {
	sess := NewSession(conn, s.dispatch, s.logger, s.cfg.ScratchDir)
	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("session ended with error", zap.Error(err))
	}
}

// acceptError distinguishes a shutdown-induced listener close from a real
// accept failure.
func (s *Server) acceptError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return fmt.Errorf("accept: %w", err)
}
