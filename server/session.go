package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/protocol"
)

const (
	// defaultRecvSize mirrors the client chunk size. Reads may still return
	// any amount; the frame buffer handles arbitrary split points.
	defaultRecvSize = 1024 * 1024

	// defaultIdleTimeout bounds how long a session waits for the next read.
	defaultIdleTimeout = 5 * time.Minute
)

// Session runs the per-connection protocol state machine. It owns the
// connection, a frame buffer, and (while an upload stream is in flight) a
// scratch file on local disk.
//
// A session is in one of two modes: command mode, where each frame is a
// command line, and upload mode, entered by an UPLOAD frame, where each
// frame is a base64 chunk until the end-of-upload sentinel.
type Session struct {
	conn        net.Conn
	dispatch    *Dispatcher
	logger      *log.Logger
	scratchDir  string
	recvSize    int
	idleTimeout time.Duration

	frames protocol.FrameBuffer

	// upload-mode state
	uploading   bool
	scratch     *os.File
	scratchPath string
}

// NewSession wires a session for one accepted connection. scratchDir is
// where in-flight upload data is spooled; empty means the OS temp dir.
func NewSession(conn net.Conn, dispatch *Dispatcher, logger *log.Logger, scratchDir string) *Session {
	return &Session{
		conn:        conn,
		dispatch:    dispatch,
		logger:      logger.With(zap.String("remote", conn.RemoteAddr().String())),
		scratchDir:  scratchDir,
		recvSize:    defaultRecvSize,
		idleTimeout: defaultIdleTimeout,
	}
}

// Run drives the session until the peer disconnects, the context is
// cancelled, or a fatal error occurs. The connection and any scratch file
// are released before Run returns, whatever the exit path.
func (s *Session) Run(ctx context.Context) error {
	defer s.cleanup()

	// Cancellation must unblock a pending read so shutdown can drain.
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	s.logger.Debug("session started")
	buf := make([]byte, s.recvSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			return &SessionError{Kind: ErrTransport, Msg: "set read deadline", Err: err}
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.frames.Append(buf[:n])
			if err := s.consume(ctx); err != nil {
				return err
			}
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, io.EOF) {
				s.logger.Debug("peer closed connection")
				return nil
			}
			return &SessionError{Kind: ErrTransport, Msg: "read", Err: err}
		}
	}
}

// consume drains every complete frame currently buffered. A partial trailing
// frame stays buffered for the next read.
func (s *Session) consume(ctx context.Context) error {
	for {
		frame, ok := s.frames.Next()
		if !ok {
			return nil
		}
		if err := s.handleFrame(ctx, frame); err != nil {
			return err
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, frame string) error {
	if s.uploading {
		return s.handleUploadFrame(ctx, frame)
	}
	return s.handleCommandFrame(ctx, frame)
}

func (s *Session) handleCommandFrame(ctx context.Context, frame string) error {
	cmd, err := protocol.ParseCommand(frame)
	if err != nil {
		return s.writeResponse(protocol.ErrorResult{Message: "empty command"})
	}

	if cmd.Verb == protocol.VerbUpload {
		return s.beginUpload()
	}

	resp := s.dispatch.Dispatch(ctx, cmd)
	s.logger.Debug("command handled", zap.String("verb", cmd.Verb))
	return s.writeResponse(resp)
}

// beginUpload opens the scratch file and acknowledges with the ready banner.
// The banner is sent bare, without the envelope terminator.
func (s *Session) beginUpload() error {
	f, err := os.CreateTemp(s.scratchDir, "upload-*.part")
	if err != nil {
		return s.writeResponse(protocol.ErrorResult{Message: "cannot open scratch file: " + err.Error()})
	}
	s.uploading = true
	s.scratch = f
	s.scratchPath = f.Name()

	if _, err := s.conn.Write([]byte(protocol.ReadyBanner)); err != nil {
		return &SessionError{Kind: ErrTransport, Msg: "write ready banner", Err: err}
	}
	s.logger.Debug("upload started", zap.String("scratch", s.scratchPath))
	return nil
}

func (s *Session) handleUploadFrame(ctx context.Context, frame string) error {
	// CRLF clients end chunk lines with \r\n; the buffer splits on \n only,
	// so the \r rides along and would corrupt the sentinel and the base64.
	frame = strings.TrimSuffix(frame, "\r")
	if frame == protocol.EndUpload {
		return s.finishUpload(ctx)
	}

	chunk, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		// A corrupt chunk poisons the whole stream: report and abort.
		_ = s.writeResponse(protocol.ErrorResult{Message: "invalid base64 chunk"})
		return &SessionError{Kind: ErrProtocol, Msg: "invalid base64 chunk", Err: err}
	}
	if _, err := s.scratch.Write(chunk); err != nil {
		_ = s.writeResponse(protocol.ErrorResult{Message: "write upload data: " + err.Error()})
		return &SessionError{Kind: ErrStorage, Msg: "write scratch file", Err: err}
	}
	return nil
}

// finishUpload hands the completed scratch file to the dispatcher and returns
// the session to command mode. The scratch file is removed regardless of
// whether the store accepted the data.
func (s *Session) finishUpload(ctx context.Context) error {
	path := s.scratchPath
	closeErr := s.scratch.Close()
	s.uploading = false
	s.scratch = nil
	s.scratchPath = ""

	if closeErr != nil {
		_ = iox.RemoveIfExists(path)
		return s.writeResponse(protocol.ErrorResult{Message: "finalize upload: " + closeErr.Error()})
	}

	resp := s.dispatch.Dispatch(ctx, protocol.Command{
		Verb: protocol.VerbUpload,
		Args: []string{path},
	})
	if err := iox.RemoveIfExists(path); err != nil {
		s.logger.Warn("scratch file cleanup failed", zap.String("path", path), zap.Error(err))
	}
	s.logger.Debug("upload finished")
	return s.writeResponse(resp)
}

// writeResponse encodes the envelope and sends it with the terminator.
func (s *Session) writeResponse(resp protocol.Response) error {
	payload, err := protocol.Encode(resp)
	if err != nil {
		return &SessionError{Kind: ErrProtocol, Msg: "encode response", Err: err}
	}
	payload = append(payload, protocol.ResponseTerminator...)
	if _, err := s.conn.Write(payload); err != nil {
		return &SessionError{Kind: ErrTransport, Msg: "write response", Err: err}
	}
	return nil
}

// cleanup releases the connection and, if an upload stream was interrupted,
// the scratch file. An aborted upload leaves nothing behind.
func (s *Session) cleanup() {
	if s.scratch != nil {
		iox.DiscardClose(s.scratch)
		if err := iox.RemoveIfExists(s.scratchPath); err != nil {
			s.logger.Warn("scratch file cleanup failed", zap.String("path", s.scratchPath), zap.Error(err))
		}
		s.scratch = nil
		s.scratchPath = ""
	}
	iox.DiscardClose(s.conn)
	s.logger.Debug("session closed")
}
