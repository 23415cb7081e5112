package snapframe

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/Atheer-Ganayem/snapframe/internal/frame"
)

// Codec turns buffered transport bytes into frames and messages into wire bytes.
// Decoding keeps state between calls and belongs to a single read path.
// Encoding is stateless.
type Codec struct {
	builder frame.Builder
}

// NewCodec returns a codec rejecting frames longer than maxPayload bytes.
// A maxPayload <= 0 means no limit.
func NewCodec(maxPayload int) *Codec {
	c := &Codec{}
	if maxPayload > 0 {
		c.builder.MaxPayloadLength = uint64(maxPayload)
	}
	c.builder.SoftReset()
	return c
}

// FrameIndex is the number of frames read so far in the current fragmented message.
func (c *Codec) FrameIndex() uint64 {
	return c.builder.FrameIndex
}

// InProgress reports whether a frame has been partially decoded.
func (c *Codec) InProgress() bool {
	return c.builder.InProgress()
}

// Decode returns the next frame in buf, or nil when buf does not hold all of it yet.
// The consumed bytes are removed from buf. Protocol violations come back as a
// synthetic Close frame and aborted is set.
func (c *Codec) Decode(buf *bytes.Buffer) (f *frame.Frame, aborted bool) {
	if buf.Len() == 0 {
		return nil, false
	}

	f = c.builder.Build(buf)
	if f == nil {
		return nil, false
	}

	aborted = c.builder.Aborted()
	idx := c.builder.FrameIndex
	c.builder.SoftReset()
	c.builder.FrameIndex = nextFrameIndex(f, idx)

	return f, aborted
}

// nextFrameIndex is evaluated against the frame just produced and the index before it.
func nextFrameIndex(f *frame.Frame, idx uint64) uint64 {
	switch {
	case !f.FIN && f.Opcode.IsData():
		return idx + 1
	// A ping between fragments moves the counter as well. Only the zero/non-zero
	// distinction is ever checked, so this has no effect on validation.
	case idx > 0 && f.Opcode == frame.OpPing:
		return idx + 1
	case f.FIN && f.Opcode == frame.OpContinuation:
		return 0
	default:
		return idx
	}
}

// Encode appends m to dst as one final, unmasked frame.
func (c *Codec) Encode(dst []byte, m Message) ([]byte, error) {
	var b0 byte
	switch m.Type {
	case CloseMessage:
		b0 = 0x88
	case TextMessage:
		b0 = 0x81
	case BinaryMessage:
		b0 = 0x82
	case PongMessage:
		b0 = 0x8A
	case PingMessage:
		b0 = 0x89
	default:
		return dst, ErrInvalidMessageType
	}

	if (m.Type == CloseMessage || m.Type == PongMessage || m.Type == PingMessage) &&
		len(m.Payload) > frame.MaxControlPayload {
		return dst, ErrControlTooLarge
	}

	n := len(m.Payload)
	dst = append(dst, b0)
	switch {
	case n <= 125:
		dst = append(dst, byte(n))
	case n <= math.MaxUint16:
		dst = append(dst, 0x7E)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, 0x7F)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}

	return append(dst, m.Payload...), nil
}

// encodedLen is the size of m once encoded.
func encodedLen(m Message) int {
	n := len(m.Payload)
	switch {
	case n <= 125:
		return 2 + n
	case n <= math.MaxUint16:
		return 4 + n
	default:
		return 10 + n
	}
}
