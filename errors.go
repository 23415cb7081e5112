package snapframe

import (
	"errors"
	"fmt"
)

// TransportError is an I/O failure of the underlying stream.
// It ends the connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("snapframe: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TextDecodeError is returned when a text message is not valid UTF-8.
type TextDecodeError struct {
	// Offset of the first invalid byte in the reassembled payload.
	Offset int
}

func (e *TextDecodeError) Error() string {
	return fmt.Sprintf("%v at offset %d", ErrInvalidUTF8, e.Offset)
}

func (e *TextDecodeError) Unwrap() error {
	return ErrInvalidUTF8
}

// IsFatalErr reports whether err means the connection is gone and no further
// message can be read or sent.
func IsFatalErr(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrConnClosed) || errors.Is(err, ErrChannelClosed)
}

func transportErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

var (
	ErrWrongMethod             = errors.New("wrong method, the request method must be GET")
	ErrMissingUpgradeHeader    = errors.New("missing Upgrade header")
	ErrInvalidUpgradeHeader    = errors.New("invalid Upgrade header")
	ErrMissingConnectionHeader = errors.New("missing connection header")
	ErrInvalidConnectionHeader = errors.New("invalid connection header")
	ErrMissingVersionHeader    = errors.New("missing version header")
	ErrInvalidVersionHeader    = errors.New("invalid version header")
	ErrMissingSecKey           = errors.New("missing Sec-WebSocket-Key header")
	ErrInvalidSecKey           = errors.New("invalid Sec-WebSocket-Key header")
	ErrHijackerNotSupported    = errors.New("connection doesnt support hijacking")

	ErrInvalidUTF8        = errors.New("invalid utf8 data")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrControlTooLarge    = errors.New("control frame payload larger than 125 bytes")
	// ErrChannelClosed is returned when enqueueing a message after the send task has ended.
	ErrChannelClosed = errors.New("channel is closed")
	// ErrConnClosed is the terminal result of Next once a Close frame was
	// processed or the peer ended the stream.
	ErrConnClosed   = errors.New("connection is closed")
	ErrRateLimited  = errors.New("rate limited")
	ErrConnNotFound = errors.New("connection not found")
)
