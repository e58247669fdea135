// Package ipc implements the framing spoken between the sweep orchestrator
// and its child processes (server daemons and stress client pools).
//
// Child processes write length-prefixed msgpack frames to stdout: a ready
// event once a listener is accepting, and a result event carrying the
// aggregate stress report. The parent decodes frames off the pipe instead
// of scraping log text.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (1 MiB), including length prefix.
	// Control events are tiny; anything larger is a corrupted stream.
	MaxFrameSize = 1 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the big-endian length prefix in bytes.
	LengthPrefixSize = 4
)

// Event type discriminants.
const (
	ReadyType  = "ready"
	ResultType = "result"
)

// ReadyEvent announces that a child server process is accepting connections.
type ReadyEvent struct {
	Type string `msgpack:"type"`
	PID  int    `msgpack:"pid"`
	Port int    `msgpack:"port"`
	Mode string `msgpack:"mode"`
}

// ResultEvent carries a stress client pool's aggregate report back to the
// orchestrator.
type ResultEvent struct {
	Type           string  `msgpack:"type"`
	Mode           string  `msgpack:"mode"`
	Operation      string  `msgpack:"operation"`
	VolumeMB       int     `msgpack:"volume_mb"`
	Clients        int     `msgpack:"clients"`
	AvgSeconds     float64 `msgpack:"avg_seconds"`
	ThroughputBps  float64 `msgpack:"throughput_bps"`
	Success        int     `msgpack:"success"`
	Fail           int     `msgpack:"fail"`
	ElapsedSeconds float64 `msgpack:"elapsed_seconds"`
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Encoder writes length-prefixed msgpack frames to a stream.
type Encoder struct {
	writer io.Writer
}

// NewEncoder creates a new frame encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: w}
}

// WriteEvent marshals the event and writes it as one frame.
func (e *Encoder) WriteEvent(event any) error {
	payload, err := msgpack.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := e.writer.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := e.writer.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// Decoder decodes length-prefixed msgpack frames from a stream.
type Decoder struct {
	reader io.Reader
}

// NewDecoder creates a new frame decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: r}
}

// ReadFrame reads a single frame from the stream and returns the raw
// msgpack payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit
func (d *Decoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}
	return payload, nil
}

// eventTypeProbe is used to peek at the type field without full decode.
type eventTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeEvent decodes a payload into its concrete event type, discriminated
// by the type field.
func DecodeEvent(payload []byte) (any, error) {
	var probe eventTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode event type",
			Err:  err,
		}
	}

	switch probe.Type {
	case ReadyType:
		var event ReadyEvent
		if err := msgpack.Unmarshal(payload, &event); err != nil {
			return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode ready event", Err: err}
		}
		return &event, nil
	case ResultType:
		var event ResultEvent
		if err := msgpack.Unmarshal(payload, &event); err != nil {
			return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode result event", Err: err}
		}
		return &event, nil
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown event type %q", probe.Type),
		}
	}
}

// ReadEvent reads and decodes the next event from the stream.
func (d *Decoder) ReadEvent() (any, error) {
	payload, err := d.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeEvent(payload)
}

// IsFrameError returns true if err is a *FrameError of the given kind.
func IsFrameError(err error, kind FrameErrorKind) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind == kind
	}
	return false
}
