package snapframe

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Atheer-Ganayem/snapframe/internal/frame"
	"github.com/google/uuid"
)

// queued messages are joined into one write up to this many bytes.
const maxCoalesce = 64 << 10

// how long Close waits for a queued close frame to be flushed when WriteWait is not set.
const defaultCloseWait = time.Second

// Conn is a server side WebSocket connection over any duplex byte stream.
//
// Concurrency:
//   - Next must be called from one goroutine at a time, it owns the read half.
//   - Send and its helpers are safe for concurrent use, they only enqueue.
//   - A single background goroutine owns the write half.
type Conn struct {
	id   string
	raw  io.ReadWriteCloser
	opts *Options
	log  *slog.Logger

	// read path
	codec       *Codec
	rbuf        bytes.Buffer
	readBuf     []byte
	frames      []*frame.Frame
	msgSize     int
	readPending error
	readErr     error
	limiter     *rateLimiter

	// write path
	key      string
	hasKey   bool
	outbound chan Message
	sendDone chan struct{}
	sendErr  error

	closeQueued atomic.Bool
	done        chan struct{}
	closeOnce   sync.Once
	closeErr    error
	ticker      *time.Ticker
}

// NewConn starts a connection over rw. The handshake response is written
// without a Sec-WebSocket-Accept header.
func NewConn(rw io.ReadWriteCloser, opts *Options) *Conn {
	return newConn(rw, "", false, opts)
}

// NewConnWithKey is like NewConn but answers the client's Sec-WebSocket-Key
// with the matching Sec-WebSocket-Accept header.
func NewConnWithKey(rw io.ReadWriteCloser, key string, opts *Options) *Conn {
	return newConn(rw, key, true, opts)
}

func newConn(rw io.ReadWriteCloser, key string, hasKey bool, opts *Options) *Conn {
	if opts == nil {
		opts = &Options{}
	}
	opts.WithDefault()

	id := uuid.NewString()
	conn := &Conn{
		id:       id,
		raw:      rw,
		opts:     opts,
		log:      opts.Logger.With("conn_id", id),
		codec:    NewCodec(opts.MaxMessageSize),
		readBuf:  make([]byte, opts.ReadBufferSize),
		limiter:  newRateLimiter(opts.MessagesPerSecond, opts.Burst),
		key:      key,
		hasKey:   hasKey,
		outbound: make(chan Message, opts.OutboundQueueSize),
		sendDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go conn.listen()
	if opts.PingEvery > 0 {
		conn.ticker = time.NewTicker(opts.PingEvery)
		go conn.pingLoop()
	}

	return conn
}

// ID returns a unique identifier of the connection.
func (conn *Conn) ID() string {
	return conn.id
}

// Transport returns the underlying stream.
func (conn *Conn) Transport() io.ReadWriteCloser {
	return conn.raw
}

// Sender returns a handle that can only enqueue messages. It may be shared
// between goroutines.
func (conn *Conn) Sender() *Sender {
	return &Sender{conn: conn}
}

// listen is the send task. It writes the handshake, then every queued
// message in order, and stops once a Close message is out.
func (conn *Conn) listen() {
	defer close(conn.sendDone)

	if err := conn.write(appendHandshake(nil, conn.key, conn.hasKey)); err != nil {
		conn.sendErr = err
		conn.log.Debug("handshake write failed", "err", err)
		return
	}

	var enc Codec
	buf := make([]byte, 0, 512)
	for {
		select {
		case <-conn.done:
			conn.sendErr = ErrConnClosed
			return
		case msg := <-conn.outbound:
			var closing bool
			buf, closing = conn.drain(&enc, buf[:0], msg)
			if len(buf) == 0 {
				continue
			}

			if err := conn.write(buf); err != nil {
				conn.sendErr = err
				conn.log.Debug("write failed", "err", err)
				return
			}

			if closing {
				conn.closeWrite()
				conn.sendErr = ErrChannelClosed
				return
			}
		}
	}
}

// drain encodes msg and whatever else is already queued into buf, so that a
// burst of messages goes out in one write. It stops after a Close message.
func (conn *Conn) drain(enc *Codec, buf []byte, msg Message) ([]byte, bool) {
	for {
		out, err := enc.Encode(slices.Grow(buf, encodedLen(msg)), msg)
		if err != nil {
			conn.log.Warn("dropping outbound message", "type", msg.Type.String(), "err", err)
		} else {
			buf = out
			if msg.Type == CloseMessage {
				return buf, true
			}
		}

		if len(buf) >= maxCoalesce {
			return buf, false
		}
		select {
		case msg = <-conn.outbound:
		default:
			return buf, false
		}
	}
}

// A loop that runs as long as the connection is alive.
// Pings the client every PingEvery.
func (conn *Conn) pingLoop() {
	for {
		select {
		case <-conn.done:
			return
		case <-conn.sendDone:
			return
		case <-conn.ticker.C:
			if err := conn.Send(context.Background(), Message{Type: PingMessage}); err != nil {
				return
			}
		}
	}
}

// Low level writing, only the send task calls it.
func (conn *Conn) write(p []byte) error {
	if conn.opts.WriteWait > 0 {
		if d, ok := conn.raw.(interface{ SetWriteDeadline(time.Time) error }); ok {
			if err := d.SetWriteDeadline(time.Now().Add(conn.opts.WriteWait)); err != nil {
				return transportErr("set write deadline", err)
			}
		}
	}

	_, err := conn.raw.Write(p)
	return transportErr("write", err)
}

// closeWrite shuts the write side down if the transport can half close.
func (conn *Conn) closeWrite() {
	if cw, ok := conn.raw.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			conn.log.Debug("close write failed", "err", err)
		}
	}
}

// Close tears the connection down. If a Close message is already queued it
// first waits, up to WriteWait, for the send task to flush it.
// It is safe to call Close more than once.
func (conn *Conn) Close() error {
	conn.closeOnce.Do(func() {
		if conn.closeQueued.Load() {
			wait := conn.opts.WriteWait
			if wait <= 0 {
				wait = defaultCloseWait
			}
			t := time.NewTimer(wait)
			select {
			case <-conn.sendDone:
			case <-t.C:
			}
			t.Stop()
		}

		close(conn.done)
		if conn.ticker != nil {
			conn.ticker.Stop()
		}
		conn.closeErr = conn.raw.Close()
		conn.log.Debug("connection closed")
	})
	return conn.closeErr
}

// CloseWithCode sends a Close message with the given code and reason, then closes the connection.
func (conn *Conn) CloseWithCode(ctx context.Context, code uint16, reason string) error {
	err := conn.Send(ctx, NewCloseMessage(code, reason))
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func (conn *Conn) isDone() bool {
	select {
	case <-conn.done:
		return true
	default:
		return false
	}
}
