package snapframe

import (
	"context"
	"unicode/utf8"

	"github.com/Atheer-Ganayem/snapframe/internal/frame"
)

// Sender enqueues messages on a connection. It is safe for concurrent use.
type Sender struct {
	conn *Conn
}

func (s *Sender) Send(ctx context.Context, msg Message) error {
	return s.conn.Send(ctx, msg)
}

func (s *Sender) SendText(ctx context.Context, str string) error {
	return s.conn.SendText(ctx, str)
}

func (s *Sender) SendBinary(ctx context.Context, b []byte) error {
	return s.conn.SendBinary(ctx, b)
}

// Send enqueues msg for the send task. Messages are written in the order they were enqueued.
// It blocks while the outbound queue is full, until ctx is done.
//
// Returns snapframe.ErrChannelClosed once the send task has ended, which happens
// after a Close message was written, the transport failed or Close was called.
func (conn *Conn) Send(ctx context.Context, msg Message) error {
	if err := validateOutbound(msg); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-conn.sendDone:
		return ErrChannelClosed
	case <-conn.done:
		return ErrChannelClosed
	default:
	}

	select {
	case conn.outbound <- msg:
		if msg.Type == CloseMessage {
			conn.closeQueued.Store(true)
		}
		return nil
	case <-conn.sendDone:
		return ErrChannelClosed
	case <-conn.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendText sends the given string as a text message.
// The string must be valid UTF-8, if it's not the method returns snapframe.ErrInvalidUTF8.
func (conn *Conn) SendText(ctx context.Context, str string) error {
	if !utf8.ValidString(str) {
		return ErrInvalidUTF8
	}
	return conn.Send(ctx, NewTextMessage(str))
}

// SendBinary sends the given byte slice as a binary message.
func (conn *Conn) SendBinary(ctx context.Context, b []byte) error {
	return conn.Send(ctx, NewBinaryMessage(b))
}

// Ping enqueues a ping. The client's pong is consumed by the engine.
func (conn *Conn) Ping(ctx context.Context, payload []byte) error {
	return conn.Send(ctx, Message{Type: PingMessage, Payload: payload})
}

// enqueue is used by the read path for close echoes and pongs.
func (conn *Conn) enqueue(msg Message) error {
	return conn.Send(context.Background(), msg)
}

// senderErr is the reason the send task ended, ErrChannelClosed if unknown.
func (conn *Conn) senderErr() error {
	select {
	case <-conn.sendDone:
		if conn.sendErr != nil {
			return conn.sendErr
		}
	default:
	}
	return ErrChannelClosed
}

func validateOutbound(msg Message) error {
	switch msg.Type {
	case TextMessage:
		if !utf8.Valid(msg.Payload) {
			return ErrInvalidUTF8
		}
	case BinaryMessage:
	case CloseMessage, PongMessage, PingMessage:
		if len(msg.Payload) > frame.MaxControlPayload {
			return ErrControlTooLarge
		}
	default:
		return ErrInvalidMessageType
	}
	return nil
}
