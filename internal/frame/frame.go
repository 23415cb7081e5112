// Package frame holds the wire-level pieces of RFC 6455: opcodes, frames and
// the resumable frame builder used by the server's read path.
package frame

import (
	"encoding/binary"
)

const (
	CloseNormalClosure           uint16 = 1000
	CloseGoingAway               uint16 = 1001
	CloseProtocolError           uint16 = 1002
	CloseUnsupportedData         uint16 = 1003
	CloseInvalidFramePayloadData uint16 = 1007
	ClosePolicyViolation         uint16 = 1008
	CloseMessageTooBig           uint16 = 1009
	CloseMandatoryExtension      uint16 = 1010
	CloseInternalServerErr       uint16 = 1011
)

// MaxControlPayload is the largest payload a control frame may carry.
const MaxControlPayload = 125

// Frame is one decoded wire frame. Payload is already unmasked.
type Frame struct {
	FIN             bool
	RSV             uint8
	Opcode          Opcode
	IsMasked        bool
	PayloadLenField uint8
	PayloadLength   uint64
	MaskingKey      [4]byte
	Payload         []byte
}

// NewCloseFrame builds a final, unmasked Close frame whose payload is code in big-endian.
func NewCloseFrame(code uint16) *Frame {
	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 2), code)

	return &Frame{
		FIN:             true,
		Opcode:          OpClose,
		PayloadLenField: uint8(len(payload)),
		PayloadLength:   uint64(len(payload)),
		Payload:         payload,
	}
}

func (f *Frame) IsControl() bool {
	return f.Opcode.IsControl()
}

// CloseCode returns the status code of a Close frame.
// ok is false if f is not a Close frame or carries no code.
func (f *Frame) CloseCode() (code uint16, ok bool) {
	if f.Opcode != OpClose || len(f.Payload) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(f.Payload[:2]), true
}
