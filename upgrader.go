package snapframe

import (
	"bufio"
	"net"
	"net/http"
	"strings"
)

// Upgrader turns HTTP requests into WebSocket connections.
// It validates the request and hijacks the HTTP connection, the 101 response
// itself is written by the connection's send task.
type Upgrader struct {
	*Options
	// Ran before accepting the handshake.
	Middlewares []Middleware
}

// NewUpgrader creates a new upgrader with the given options.
// If options is nil, then it will assign a new options with default values.
func NewUpgrader(opts *Options) *Upgrader {
	if opts == nil {
		opts = &Options{}
	}
	opts.WithDefault()

	return &Upgrader{Options: opts}
}

// Use appends mw to the middlewares of the upgrader.
func (u *Upgrader) Use(mw Middleware) {
	u.Middlewares = append(u.Middlewares, mw)
}

// Upgrade validates the method and headers, runs the middlewares and hijacks the connection.
// On failure it responds to the client with an HTTP error.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	if r.Method != http.MethodGet {
		http.Error(w, "request method should be get", http.StatusMethodNotAllowed)
		return nil, ErrWrongMethod
	}
	if err := validateUpgradeHeader(r); err != nil {
		http.Error(w, "invalid or missing upgrade header", http.StatusUpgradeRequired)
		return nil, err
	}
	if err := validateConnectionHeader(r); err != nil {
		http.Error(w, "invalid or missing connection header", http.StatusBadRequest)
		return nil, err
	}
	if err := validateVersionHeader(r); err != nil {
		http.Error(w, "invalid or missing Sec-WebSocket-Version header, must be 13", http.StatusBadRequest)
		return nil, err
	}
	if err := validateSecKeyHeader(r); err != nil {
		http.Error(w, "invalid or missing Sec-WebSocket-Key header", http.StatusBadRequest)
		return nil, err
	}

	for _, middleware := range u.Middlewares {
		if err := middleware(w, r); err != nil {
			if mwErr, ok := AsMiddlewareErr(err); ok {
				http.Error(w, mwErr.Message, mwErr.Code)
			} else {
				http.Error(w, "middleware error", http.StatusBadRequest)
			}
			return nil, err
		}
	}

	c, brw, err := http.NewResponseController(w).Hijack()
	if err != nil {
		http.Error(w, "failed to hijack connection", http.StatusInternalServerError)
		return nil, ErrHijackerNotSupported
	}

	key := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	conn := NewConnWithKey(&brNetConn{br: brw.Reader, Conn: c}, key, u.Options)
	u.Logger.Debug("connection upgraded", "conn_id", conn.ID(), "remote_addr", c.RemoteAddr().String())

	if u.OnConnect != nil {
		u.OnConnect(conn)
	}

	return conn, nil
}

// This is from gorilla/websocket
type brNetConn struct {
	br *bufio.Reader
	net.Conn
}

// If there is still data in the http buffer it reads from it.
// When the http buffer gets empty, it sets it to nil to be collected by the GC,
// then for future reads it reads directly from the net.Conn.
func (b *brNetConn) Read(p []byte) (n int, err error) {
	if b.br != nil {
		// Limit read to buferred data.
		if n := b.br.Buffered(); len(p) > n {
			p = p[:n]
		}
		n, err = b.br.Read(p)
		if b.br.Buffered() == 0 {
			b.br = nil
		}
		return n, err
	}
	return b.Conn.Read(p)
}

func (b *brNetConn) CloseWrite() error {
	if cw, ok := b.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}
