// Package wire implements the length-prefixed framing protocol used between
// blds and its remote clients: a 4-byte little-endian length followed by
// that many bytes of payload, the payload beginning with an ASCII message
// type terminated by a newline.
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrShortFrame indicates the buffer does not yet contain a complete frame.
// Callers should wait for more bytes and retry; it is never fatal.
var ErrShortFrame = errors.New("wire: short frame")

// ErrMalformedFrame indicates the payload's message-type line is missing
// its terminating newline. Fatal for the message, not for the connection.
var ErrMalformedFrame = errors.New("wire: malformed frame, no newline after message type")

// MaxFrameSize bounds a single payload to guard against a runaway length
// prefix exhausting memory before the rest of the frame arrives.
const MaxFrameSize = 64 << 20 // 64 MiB, generously above one data chunk

// Frame is a decoded message: its type line and the type-specific body that
// follows it.
type Frame struct {
	Type string
	Body []byte
}

// Encode serializes a type and body into a complete length-prefixed frame.
func Encode(msgType string, body []byte) []byte {
	payload := make([]byte, 0, len(msgType)+1+len(body))
	payload = append(payload, msgType...)
	payload = append(payload, '\n')
	payload = append(payload, body...)

	out := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// DecodeFrame parses one frame from the front of buf. It returns the number
// of bytes consumed from buf alongside the decoded Frame. If buf does not
// yet hold a complete frame, it returns ErrShortFrame and the caller should
// retry once more bytes have arrived. A payload whose message-type line has
// no newline is ErrMalformedFrame; the caller should still consume the
// returned byte count so the connection can continue past the bad message.
func DecodeFrame(buf []byte) (frame *Frame, consumed int, err error) {
	if len(buf) < 4 {
		return nil, 0, ErrShortFrame
	}
	size := binary.LittleEndian.Uint32(buf[:4])
	if size > MaxFrameSize {
		return nil, 0, fmt.Errorf("wire: frame size %d exceeds maximum %d", size, MaxFrameSize)
	}
	total := 4 + int(size)
	if len(buf) < total {
		return nil, 0, ErrShortFrame
	}
	payload := buf[4:total]

	nl := bytes.IndexByte(payload, '\n')
	if nl < 0 {
		return nil, total, ErrMalformedFrame
	}
	return &Frame{
		Type: string(payload[:nl]),
		Body: payload[nl+1:],
	}, total, nil
}

// ReadFrame reads exactly one frame from r, blocking until it is available.
// It is the blocking counterpart to DecodeFrame, used by a session's read
// loop over its own net.Conn.
func ReadFrame(r *bufio.Reader) (*Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(lenBuf[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame size %d exceeds maximum %d", size, MaxFrameSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	nl := bytes.IndexByte(payload, '\n')
	if nl < 0 {
		return nil, ErrMalformedFrame
	}
	return &Frame{
		Type: string(payload[:nl]),
		Body: payload[nl+1:],
	}, nil
}

// WriteFrame writes a complete frame to w in a single call, matching the
// "atomic with respect to other sends" requirement for a connection's
// outgoing side: callers must still serialize concurrent calls to WriteFrame
// for the same w themselves (see session.Session).
func WriteFrame(w io.Writer, msgType string, body []byte) error {
	_, err := w.Write(Encode(msgType, body))
	return err
}
