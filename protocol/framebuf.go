package protocol

import "bytes"

// FrameBuffer accumulates raw bytes from the socket and splits them into
// newline-delimited frames. A single read may deliver several frames or a
// fraction of one; the buffer retains the unterminated remainder so no
// frame is ever lost or duplicated across read boundaries.
//
// The zero value is ready to use. Not safe for concurrent use — each
// connection session owns exactly one FrameBuffer.
type FrameBuffer struct {
	buf []byte
	off int
}

// Append adds raw received bytes to the buffer.
func (b *FrameBuffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
}

// Next extracts the next complete frame, without its trailing '\n'.
// Returns false when no complete frame is buffered.
func (b *FrameBuffer) Next() (string, bool) {
	i := bytes.IndexByte(b.buf[b.off:], '\n')
	if i < 0 {
		b.compact()
		return "", false
	}
	frame := string(b.buf[b.off : b.off+i])
	b.off += i + 1
	return frame, true
}

// Len reports the number of unconsumed bytes, including any partial frame.
func (b *FrameBuffer) Len() int {
	return len(b.buf) - b.off
}

// compact reclaims consumed space once it dominates the buffer, so a
// long-lived connection does not grow the buffer without bound.
func (b *FrameBuffer) compact() {
	if b.off == 0 {
		return
	}
	if b.off == len(b.buf) {
		b.buf = b.buf[:0]
		b.off = 0
		return
	}
	if b.off > len(b.buf)/2 {
		n := copy(b.buf, b.buf[b.off:])
		b.buf = b.buf[:n]
		b.off = 0
	}
}
