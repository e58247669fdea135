// Package client implements the wire protocol's client side: one TCP
// connection per operation, newline-delimited command frames out, terminated
// JSON envelopes back.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/protocol"
)

const (
	// DefaultChunkSize is the raw byte count encoded into each upload
	// chunk line. Base64 inflates the wire size by a third.
	DefaultChunkSize = 1024 * 1024

	// defaultTimeout bounds each whole operation, dial included.
	defaultTimeout = 5 * time.Minute

	// recvSize is the read buffer size for envelope reads.
	recvSize = 1024 * 1024
)

// Client issues file operations against one server address. Each operation
// dials its own connection, so a Client is safe for concurrent use by the
// stress workers.
type Client struct {
	// Addr is the server's host:port.
	Addr string
	// Timeout bounds each operation end to end. Zero means a generous
	// default suitable for large-volume stress transfers.
	Timeout time.Duration
	// ChunkSize is the raw bytes per upload chunk. Zero means
	// DefaultChunkSize.
	ChunkSize int
}

// New returns a client for the given server address.
func New(addr string) *Client {
	return &Client{Addr: addr}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func (c *Client) chunkSize() int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return DefaultChunkSize
}

// dial opens the operation's connection with the operation deadline applied.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	deadline := time.Now().Add(c.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var dialer net.Dialer
	dialer.Deadline = deadline
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.Addr, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		iox.DiscardClose(conn)
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	return conn, nil
}

// List fetches the stored filenames.
func (c *Client) List(ctx context.Context) ([]string, error) {
	payload, err := c.roundTrip(ctx, protocol.VerbList+"\n")
	if err != nil {
		return nil, err
	}
	return protocol.DecodeList(payload)
}

// Get downloads a file's content.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	payload, err := c.roundTrip(ctx, protocol.VerbGet+" "+name+"\n")
	if err != nil {
		return nil, err
	}
	_, data, err := protocol.DecodeGet(payload)
	return data, err
}

// Delete removes a stored file.
func (c *Client) Delete(ctx context.Context, name string) error {
	payload, err := c.roundTrip(ctx, protocol.VerbDelete+" "+name+"\n")
	if err != nil {
		return err
	}
	return protocol.DecodeDelete(payload)
}

// Upload streams data to the server in base64 chunk lines and returns the
// content-addressed name the server stored it under.
func (c *Client) Upload(ctx context.Context, data []byte) (string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer iox.DiscardClose(conn)

	if _, err := conn.Write([]byte(protocol.VerbUpload + "\n")); err != nil {
		return "", fmt.Errorf("send UPLOAD: %w", err)
	}
	if err := readBanner(conn); err != nil {
		return "", err
	}

	chunk := c.chunkSize()
	line := make([]byte, 0, base64.StdEncoding.EncodedLen(chunk)+1)
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		line = line[:base64.StdEncoding.EncodedLen(end-off)]
		base64.StdEncoding.Encode(line, data[off:end])
		line = append(line, '\n')
		if _, err := conn.Write(line); err != nil {
			return "", fmt.Errorf("send chunk: %w", err)
		}
	}
	if _, err := conn.Write([]byte(protocol.EndUpload + "\n")); err != nil {
		return "", fmt.Errorf("send end-of-upload: %w", err)
	}

	payload, err := readEnvelope(conn)
	if err != nil {
		return "", err
	}
	return protocol.DecodeUpload(payload)
}

// UploadFile uploads the file at path.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return c.Upload(ctx, data)
}

// roundTrip sends one command line and reads back one envelope on a fresh
// connection.
func (c *Client) roundTrip(ctx context.Context, line string) ([]byte, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(conn)

	if _, err := conn.Write([]byte(line)); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}
	return readEnvelope(conn)
}

// readBanner consumes the upload handshake ack. The banner is plain text
// without a terminator, so it is matched as a substring of whatever the
// first read delivers.
func readBanner(conn net.Conn) error {
	buf := make([]byte, 0, len(protocol.ReadyBanner))
	tmp := make([]byte, 256)
	for len(buf) < len(protocol.ReadyBanner) {
		n, err := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			return fmt.Errorf("read upload ack: %w", err)
		}
	}
	if !strings.Contains(string(buf), protocol.ReadyBanner) {
		return fmt.Errorf("unexpected upload ack %q", buf)
	}
	return nil
}

// readEnvelope accumulates reads until the envelope terminator arrives and
// returns the JSON payload without it.
func readEnvelope(conn net.Conn) ([]byte, error) {
	var acc []byte
	buf := make([]byte, recvSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
			if i := bytes.Index(acc, []byte(protocol.ResponseTerminator)); i >= 0 {
				return acc[:i], nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("connection closed before envelope completed (got %d bytes)", len(acc))
			}
			return nil, fmt.Errorf("read envelope: %w", err)
		}
	}
}
