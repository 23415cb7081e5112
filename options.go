package snapframe

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultOutboundQueueSize = 100
	DefaultMaxMessageSize    = 1 << 20 // 1MB
	DefaultReadBufferSize    = 4096
)

type Options struct {
	// Ran when the upgrader hands a new connection to the caller.
	OnConnect func(conn *Conn)

	// Number of outbound messages that may wait for the send task.
	// Enqueueing blocks once it is full. If not set it will default to 100.
	OutboundQueueSize int

	// Max payload length of a single frame sent by the client, and of a whole
	// message once its fragments are joined. If not set it will default to 1MB.
	// Exceeding either limit is answered with a 1009 close.
	// -1 means there is no max size.
	MaxMessageSize int
	// Size of the buffer used for each read from the transport. if not set it will default to 4096.
	ReadBufferSize int

	// Deadline applied to every transport read and write, only if the transport
	// supports deadlines (net.Conn does). 0 means no deadline.
	ReadWait  time.Duration
	WriteWait time.Duration
	// If set, the server pings the client every PingEvery. 0 disables it.
	PingEvery time.Duration

	// Messages per second accepted from a client, 0 disables rate limiting.
	MessagesPerSecond float64
	// Number of bursts allowed. If not set it will default to MessagesPerSecond.
	Burst int

	// Logger receives connection level events. If not set logs are discarded.
	Logger *slog.Logger
}

func (opt *Options) WithDefault() {
	if opt.OutboundQueueSize <= 0 {
		opt.OutboundQueueSize = DefaultOutboundQueueSize
	}
	if opt.MaxMessageSize == 0 {
		opt.MaxMessageSize = DefaultMaxMessageSize
	}
	if opt.ReadBufferSize <= 0 {
		opt.ReadBufferSize = DefaultReadBufferSize
	}
	if opt.MessagesPerSecond > 0 && opt.Burst <= 0 {
		opt.Burst = max(1, int(opt.MessagesPerSecond))
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
}

// A function representing a middleware that will be ran after validating the websocket upgrade request
// and before switching protocols.
// If an error returns the connection wont be accepted.
// It is prefered to return an error of type snapframe.MiddlewareErr.
type Middleware func(w http.ResponseWriter, r *http.Request) error

type MiddlewareErr struct {
	Code    int
	Message string
}

func AsMiddlewareErr(err error) (*MiddlewareErr, bool) {
	e, ok := err.(*MiddlewareErr)
	return e, ok
}

func (err *MiddlewareErr) Error() string {
	return err.Message
}

func NewMiddlewareErr(code int, message string) *MiddlewareErr {
	return &MiddlewareErr{Code: code, Message: message}
}
