package snapframe

import (
	"errors"
	"io"
	"time"

	"github.com/Atheer-Ganayem/snapframe/internal/frame"
)

// Next blocks until the next application message is available.
//
// Control frames are handled on the way: a ping is answered with a pong carrying
// the same payload, a pong is discarded, and a close is echoed back and ends
// the stream. Fragmented messages are returned once their final frame arrived.
//
// The terminal errors are:
//   - snapframe.ErrConnClosed: a Close frame was processed (including the ones
//     the engine synthesizes on protocol violations) or the client ended the stream.
//   - *snapframe.TransportError: reading from the transport failed.
//
// Once a terminal error was returned every later call returns it again.
// A *snapframe.TextDecodeError means a text message was not valid UTF-8, the
// engine closes the connection with 1007 and the next call returns ErrConnClosed.
// snapframe.ErrRateLimited is not terminal, the message was dropped.
func (conn *Conn) Next() (Message, error) {
	if conn.readErr != nil {
		return Message{}, conn.readErr
	}

	for {
		f, err := conn.readFrame()
		if err != nil {
			conn.readErr = err
			conn.frames = nil
			return Message{}, err
		}

		if f.IsControl() {
			switch f.Opcode {
			case frame.OpClose:
				return Message{}, conn.handleClose(f)
			case frame.OpPing:
				if err := conn.enqueue(pongFromPing(f)); err != nil {
					conn.readErr = conn.senderErr()
					return Message{}, conn.readErr
				}
			case frame.OpPong:
				conn.log.Debug("pong received", "len", len(f.Payload))
			}
			continue
		}

		conn.frames = append(conn.frames, f)
		conn.msgSize += len(f.Payload)
		if conn.opts.MaxMessageSize > 0 && conn.msgSize > conn.opts.MaxMessageSize {
			return Message{}, conn.handleClose(frame.NewCloseFrame(frame.CloseMessageTooBig))
		}
		if !f.FIN {
			continue
		}

		frames := conn.frames
		conn.frames = nil
		conn.msgSize = 0

		msg, err := messageFromFrames(frames)
		if err != nil {
			var tde *TextDecodeError
			if errors.As(err, &tde) {
				conn.log.Debug("invalid utf8 in text message", "offset", tde.Offset)
				_ = conn.enqueue(NewCloseMessage(frame.CloseInvalidFramePayloadData, ""))
				conn.readErr = ErrConnClosed
			}
			return Message{}, err
		}

		if !conn.limiter.allow() {
			conn.log.Debug("message dropped by rate limiter", "dropped", conn.limiter.dropped)
			return Message{}, ErrRateLimited
		}

		return msg, nil
	}
}

// handleClose echoes f back to the client and ends the read path.
func (conn *Conn) handleClose(f *frame.Frame) error {
	code, _ := f.CloseCode()
	conn.log.Debug("close frame", "code", code)

	if err := conn.enqueue(closeMessageFromFrame(f)); err != nil {
		conn.log.Debug("close echo not sent", "err", err)
	}

	conn.frames = nil
	conn.readErr = ErrConnClosed
	return ErrConnClosed
}

// readFrame decodes the next frame, reading from the transport as long as
// the buffered bytes are not enough.
func (conn *Conn) readFrame() (*frame.Frame, error) {
	for {
		if f, aborted := conn.codec.Decode(&conn.rbuf); f != nil {
			if aborted {
				code, _ := f.CloseCode()
				conn.log.Debug("protocol violation", "code", code)
			}
			return f, nil
		}

		if conn.readPending != nil {
			err := conn.readPending
			conn.readPending = nil
			return nil, conn.readError(err)
		}

		n, err := conn.read(conn.readBuf)
		conn.rbuf.Write(conn.readBuf[:n])
		if err != nil {
			conn.readPending = err
		}
	}
}

func (conn *Conn) read(p []byte) (int, error) {
	if conn.opts.ReadWait > 0 {
		if d, ok := conn.raw.(interface{ SetReadDeadline(time.Time) error }); ok {
			if err := d.SetReadDeadline(time.Now().Add(conn.opts.ReadWait)); err != nil {
				return 0, err
			}
		}
	}
	return conn.raw.Read(p)
}

// readError tells a clean end of stream from a transport failure.
func (conn *Conn) readError(err error) error {
	if conn.isDone() {
		return ErrConnClosed
	}
	if errors.Is(err, io.EOF) {
		if conn.rbuf.Len() > 0 || conn.codec.InProgress() || len(conn.frames) > 0 {
			return transportErr("read", io.ErrUnexpectedEOF)
		}
		return ErrConnClosed
	}
	return transportErr("read", err)
}
