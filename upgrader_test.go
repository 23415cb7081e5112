package snapframe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoServer(t *testing.T, opts *Options) *httptest.Server {
	t.Helper()
	u := NewUpgrader(opts)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := u.Upgrade(w, r)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			msg, err := conn.Next()
			if IsFatalErr(err) {
				return
			} else if err != nil {
				continue
			}
			if err := conn.Send(context.Background(), msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	return ws
}

func TestUpgraderEcho(t *testing.T) {
	ws := dial(t, newEchoServer(t, nil))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	typ, p, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, "hello", string(p))

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	typ, p, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)
	assert.Equal(t, []byte{1, 2, 3}, p)
}

func TestUpgraderFragmentedMessage(t *testing.T) {
	ws := dial(t, newEchoServer(t, nil))

	// larger than the client's write buffer, so it goes out as several frames
	big := strings.Repeat("fragment ", 5000)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(big)))

	_, p, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, big, string(p))
}

func TestUpgraderPingPong(t *testing.T) {
	ws := dial(t, newEchoServer(t, nil))

	pongs := make(chan string, 1)
	ws.SetPongHandler(func(appData string) error {
		pongs <- appData
		return nil
	})

	require.NoError(t, ws.WriteControl(websocket.PingMessage, []byte("are you there"), time.Now().Add(time.Second)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("after ping")))

	_, p, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "after ping", string(p))

	select {
	case got := <-pongs:
		assert.Equal(t, "are you there", got)
	default:
		t.Fatal("pong was not delivered before the echo")
	}
}

func TestUpgraderCloseHandshake(t *testing.T) {
	ws := dial(t, newEchoServer(t, nil))

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	require.NoError(t, ws.WriteMessage(websocket.CloseMessage, msg))

	_, _, err := ws.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
	assert.Equal(t, "bye", ce.Text)
}

func TestUpgraderInvalidUTF8(t *testing.T) {
	ws := dial(t, newEchoServer(t, nil))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte{0xFF, 0xFE}))

	_, _, err := ws.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseInvalidFramePayloadData, ce.Code)
}

func TestUpgraderMessageTooBig(t *testing.T) {
	ws := dial(t, newEchoServer(t, &Options{MaxMessageSize: 16}))

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, make([]byte, 17)))

	_, _, err := ws.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseMessageTooBig, ce.Code)
}

func TestUpgraderOnConnect(t *testing.T) {
	var connected atomic.Int32
	srv := newEchoServer(t, &Options{OnConnect: func(conn *Conn) {
		if conn.ID() != "" {
			connected.Add(1)
		}
	}})

	dial(t, srv)
	dial(t, srv)
	// the 101 response can reach the client before OnConnect returns
	assert.Eventually(t, func() bool { return connected.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestUpgraderMiddleware(t *testing.T) {
	u := NewUpgrader(nil)
	u.Use(func(w http.ResponseWriter, r *http.Request) error {
		if r.URL.Query().Get("token") != "secret" {
			return NewMiddlewareErr(http.StatusUnauthorized, "bad token")
		}
		return nil
	})

	r := upgradeRequest()
	w := httptest.NewRecorder()
	_, err := u.Upgrade(w, r)

	mwErr, ok := AsMiddlewareErr(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, mwErr.Code)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpgraderRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *http.Request)
		status int
		err    error
	}{
		{"post", func(r *http.Request) { r.Method = http.MethodPost }, http.StatusMethodNotAllowed, ErrWrongMethod},
		{"no upgrade", func(r *http.Request) { r.Header.Del("Upgrade") }, http.StatusUpgradeRequired, ErrMissingUpgradeHeader},
		{"no connection", func(r *http.Request) { r.Header.Del("Connection") }, http.StatusBadRequest, ErrMissingConnectionHeader},
		{"old version", func(r *http.Request) { r.Header.Set("Sec-WebSocket-Version", "8") }, http.StatusBadRequest, ErrInvalidVersionHeader},
		{"bad key", func(r *http.Request) { r.Header.Set("Sec-WebSocket-Key", "abc") }, http.StatusBadRequest, ErrInvalidSecKey},
		// a recorder cannot be hijacked
		{"no hijack", func(r *http.Request) {}, http.StatusInternalServerError, ErrHijackerNotSupported},
	}

	u := NewUpgrader(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := upgradeRequest()
			tt.modify(r)
			w := httptest.NewRecorder()

			conn, err := u.Upgrade(w, r)
			assert.Nil(t, conn)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func upgradeRequest() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Upgrade", "websocket")
	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Sec-WebSocket-Version", "13")
	r.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return r
}
