package server

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session errors for the propagation policy: protocol
// and storage failures become ERROR envelopes on the live connection, while
// transport failures terminate it.
type ErrorKind int

const (
	// ErrProtocol is a protocol violation (bad base64 in an upload stream).
	ErrProtocol ErrorKind = iota
	// ErrStorage is a storage-side failure surfaced to the session.
	ErrStorage
	// ErrTransport is a socket-level failure: timeout, reset, short write.
	ErrTransport
)

func (k ErrorKind) String() string {
	switch k {
	case ErrProtocol:
		return "protocol"
	case ErrStorage:
		return "storage"
	case ErrTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// SessionError is a fatal per-connection error. Recoverable conditions never
// become SessionErrors — they are answered in-band as ERROR envelopes.
type SessionError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsSessionError returns true if err is a *SessionError of the given kind.
func IsSessionError(err error, kind ErrorKind) bool {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
