package frame

import (
	"bytes"
	"encoding/binary"
)

//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	| |1|2|3|       |K|             |                               |
//	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
//	|     Extended payload length continued, if payload len == 127  |
//	+ - - - - - - - - - - - - - - - +-------------------------------+
//	|                               |Masking-key, if MASK set to 1  |
//	+-------------------------------+-------------------------------+
//	| Masking-key (continued)       |          Payload Data         |
//	+-------------------------------- - - - - - - - - - - - - - - - +
//	:                     Payload Data continued ...                :
//	+ - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - +

// caps the up-front payload allocation, a peer can declare any length.
const maxPayloadPrealloc = 64 << 10

// Builder decodes one frame at a time from a byte buffer that may hold only
// part of it. Progress is kept between calls, so a frame split over many
// reads is assembled without re-parsing.
//
// A protocol violation does not fail the builder: Build returns a synthetic
// Close frame carrying the matching close code instead.
type Builder struct {
	// FrameIndex is the number of frames consumed so far in the current
	// fragmented message, 0 when none is in progress.
	// It is maintained by the owner of the builder and survives SoftReset.
	FrameIndex uint64
	// MaxPayloadLength rejects frames declaring a longer payload with
	// CloseMessageTooBig. 0 means no limit.
	MaxPayloadLength uint64

	headerRead  bool
	fin         bool
	rsv         uint8
	opcode      Opcode
	lenByteRead bool
	masked      bool
	lenField    uint8
	extLenRead  bool
	length      uint64
	maskKeyRead bool
	maskKey     [4]byte
	payload     []byte

	aborted bool
}

// SoftReset clears the progress of the current frame. FrameIndex is kept.
func (b *Builder) SoftReset() {
	*b = Builder{
		FrameIndex:       b.FrameIndex,
		MaxPayloadLength: b.MaxPayloadLength,
		opcode:           OpUnset,
	}
}

// Aborted reports whether the last frame returned by Build was synthesized
// because of a protocol violation.
func (b *Builder) Aborted() bool {
	return b.aborted
}

// InProgress reports whether part of a frame has been consumed.
func (b *Builder) InProgress() bool {
	return b.headerRead
}

// Build consumes bytes from the front of src and returns the frame once all of
// it has arrived. It returns nil when src runs out first; bytes that belong to
// an unfinished stage are left in src for the next call.
func (b *Builder) Build(src *bytes.Buffer) *Frame {
	if !b.headerRead {
		c, err := src.ReadByte()
		if err != nil {
			return nil
		}
		b.fin = c&0x80 != 0
		b.rsv = (c & 0x70) >> 4
		if b.rsv != 0 {
			return b.abort(CloseProtocolError)
		}

		b.opcode = ParseOpcode(c)
		if b.opcode.IsReserved() ||
			(b.FrameIndex == 0 && b.opcode == OpContinuation) ||
			(b.FrameIndex > 0 && (b.opcode == OpText || b.opcode == OpBinary)) {
			return b.abort(CloseProtocolError)
		}
		b.headerRead = true
	}

	if !b.lenByteRead {
		c, err := src.ReadByte()
		if err != nil {
			return nil
		}
		b.masked = c&0x80 != 0
		b.lenField = c & 0x7F
		b.lenByteRead = true

		if b.opcode.IsControl() && (b.lenField > MaxControlPayload || !b.fin) {
			return b.abort(CloseProtocolError)
		}
		// clients must mask every frame
		if !b.masked {
			return b.abort(CloseProtocolError)
		}
	}

	if !b.extLenRead {
		switch b.lenField {
		case 126:
			if src.Len() < 2 {
				return nil
			}
			b.length = uint64(binary.BigEndian.Uint16(src.Next(2)))
		case 127:
			if src.Len() < 8 {
				return nil
			}
			b.length = binary.BigEndian.Uint64(src.Next(8))
			if b.length>>63 != 0 {
				return b.abort(CloseProtocolError)
			}
		default:
			b.length = uint64(b.lenField)
		}
		b.extLenRead = true

		if b.MaxPayloadLength > 0 && b.length > b.MaxPayloadLength {
			return b.abort(CloseMessageTooBig)
		}
		b.payload = make([]byte, 0, min(b.length, maxPayloadPrealloc))
	}

	if b.masked && !b.maskKeyRead {
		if src.Len() < 4 {
			return nil
		}
		copy(b.maskKey[:], src.Next(4))
		b.maskKeyRead = true
	}

	if !b.readPayload(src) {
		return nil
	}

	return &Frame{
		FIN:             b.fin,
		RSV:             b.rsv,
		Opcode:          b.opcode,
		IsMasked:        b.masked,
		PayloadLenField: b.lenField,
		PayloadLength:   b.length,
		MaskingKey:      b.maskKey,
		Payload:         b.payload,
	}
}

// readPayload appends up to the remaining payload bytes and unmasks them.
// The key index follows the offset into the whole payload, not into this chunk.
func (b *Builder) readPayload(src *bytes.Buffer) bool {
	need := b.length - uint64(len(b.payload))
	chunk := src.Next(int(min(need, uint64(src.Len()))))

	off := len(b.payload)
	b.payload = append(b.payload, chunk...)
	if b.masked {
		unmask(b.payload[off:], b.maskKey, off)
	}

	return uint64(len(b.payload)) == b.length
}

func (b *Builder) abort(code uint16) *Frame {
	b.aborted = true
	return NewCloseFrame(code)
}
