package snapframe

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"

	"github.com/Atheer-Ganayem/snapframe/internal/frame"
)

// Close status codes from RFC 6455 section 7.4.1.
const (
	CloseNormalClosure           = frame.CloseNormalClosure
	CloseGoingAway               = frame.CloseGoingAway
	CloseProtocolError           = frame.CloseProtocolError
	CloseUnsupportedData         = frame.CloseUnsupportedData
	CloseInvalidFramePayloadData = frame.CloseInvalidFramePayloadData
	ClosePolicyViolation         = frame.ClosePolicyViolation
	CloseMessageTooBig           = frame.CloseMessageTooBig
	CloseMandatoryExtension      = frame.CloseMandatoryExtension
	CloseInternalServerErr       = frame.CloseInternalServerErr
)

type MessageType uint8

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
	CloseMessage
	PongMessage
	// PingMessage is only ever sent, received pings are answered by the engine.
	PingMessage
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	case CloseMessage:
		return "close"
	case PongMessage:
		return "pong"
	case PingMessage:
		return "ping"
	default:
		return "unknown"
	}
}

// Message is one application level unit. Text payloads are valid UTF-8.
type Message struct {
	Type    MessageType
	Payload []byte
}

func NewTextMessage(s string) Message {
	return Message{Type: TextMessage, Payload: []byte(s)}
}

func NewBinaryMessage(b []byte) Message {
	return Message{Type: BinaryMessage, Payload: b}
}

// NewCloseMessage builds a Close message with the given code and optional UTF-8 reason.
func NewCloseMessage(code uint16, reason string) Message {
	payload := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(payload, code)
	return Message{Type: CloseMessage, Payload: append(payload, reason...)}
}

func (m Message) IsText() bool {
	return m.Type == TextMessage
}

func (m Message) IsBinary() bool {
	return m.Type == BinaryMessage
}

func (m Message) IsClose() bool {
	return m.Type == CloseMessage
}

func (m Message) Text() string {
	return string(m.Payload)
}

// CloseCode parses the payload of a Close message.
func (m Message) CloseCode() (code uint16, reason string, ok bool) {
	if m.Type != CloseMessage || len(m.Payload) < 2 {
		return 0, "", false
	}
	return binary.BigEndian.Uint16(m.Payload[:2]), string(m.Payload[2:]), true
}

func closeMessageFromFrame(f *frame.Frame) Message {
	return Message{Type: CloseMessage, Payload: f.Payload}
}

func pongFromPing(f *frame.Frame) Message {
	return Message{Type: PongMessage, Payload: f.Payload}
}

// messageFromFrames joins the payloads of a complete fragment sequence.
// The kind is taken from the first frame.
func messageFromFrames(frames []*frame.Frame) (Message, error) {
	var msg Message
	if len(frames) == 0 {
		return msg, ErrInvalidMessageType
	}

	switch frames[0].Opcode {
	case frame.OpText:
		msg.Type = TextMessage
	case frame.OpBinary:
		msg.Type = BinaryMessage
	default:
		return msg, ErrInvalidMessageType
	}

	if len(frames) == 1 {
		msg.Payload = frames[0].Payload
	} else {
		size := 0
		for _, f := range frames {
			size += len(f.Payload)
		}
		buf := bytes.NewBuffer(make([]byte, 0, size))
		for _, f := range frames {
			buf.Write(f.Payload)
		}
		msg.Payload = buf.Bytes()
	}

	if msg.Type == TextMessage && !utf8.Valid(msg.Payload) {
		return Message{}, &TextDecodeError{Offset: invalidUTF8Offset(msg.Payload)}
	}

	return msg, nil
}

func invalidUTF8Offset(p []byte) int {
	for i := 0; i < len(p); {
		r, size := utf8.DecodeRune(p[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(p)
}
