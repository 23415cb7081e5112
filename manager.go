package snapframe

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
)

// upper bound of goroutines used by a single Broadcast.
const maxBroadcastWorkers = 16

// Manager keeps track of upgraded connections by key and sends to many of them at once.
// All methods are safe for concurrent use.
type Manager[KeyType comparable] struct {
	Upgrader *Upgrader

	conns map[KeyType]*Conn
	mu    sync.RWMutex

	// Called after a connection was removed from the manager and closed.
	OnDisconnect func(key KeyType, conn *Conn)
}

// NewManager creates a manager upgrading requests with u.
// If u is nil a default upgrader is used.
func NewManager[KeyType comparable](u *Upgrader) *Manager[KeyType] {
	if u == nil {
		u = NewUpgrader(nil)
	}

	return &Manager[KeyType]{
		Upgrader: u,
		conns:    make(map[KeyType]*Conn),
	}
}

// Connect upgrades the request and registers the new connection under key.
// A connection already registered under key is replaced and closed.
func (m *Manager[KeyType]) Connect(key KeyType, w http.ResponseWriter, r *http.Request) (*Conn, error) {
	conn, err := m.Upgrader.Upgrade(w, r)
	if err != nil {
		return nil, err
	}

	m.Register(key, conn)
	return conn, nil
}

func (m *Manager[KeyType]) Register(key KeyType, conn *Conn) {
	m.mu.Lock()
	old, ok := m.conns[key]
	m.conns[key] = conn
	m.mu.Unlock()

	if ok && old != conn {
		old.Close()
	}
}

// Unregister removes the connection under key, closes it and runs OnDisconnect.
// Returns ErrConnNotFound if nothing is registered under key.
func (m *Manager[KeyType]) Unregister(key KeyType) error {
	m.mu.Lock()
	conn, ok := m.conns[key]
	if !ok {
		m.mu.Unlock()
		return ErrConnNotFound
	}
	delete(m.conns, key)
	m.mu.Unlock()

	conn.Close()
	if m.OnDisconnect != nil {
		m.OnDisconnect(key, conn)
	}

	return nil
}

func (m *Manager[KeyType]) GetConn(key KeyType) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[key]
	return conn, ok
}

func (m *Manager[KeyType]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.conns)
}

// Broadcast enqueues msg on every registered connection except the ones under exclude.
// It returns the number of connections that accepted the message. A full
// outbound queue blocks only the worker serving that connection, until ctx is done.
func (m *Manager[KeyType]) Broadcast(ctx context.Context, msg Message, exclude ...KeyType) (int, error) {
	if err := validateOutbound(msg); err != nil {
		return 0, err
	}

	m.mu.RLock()
	targets := make([]*Sender, 0, len(m.conns))
	for key, conn := range m.conns {
		if !slices.Contains(exclude, key) {
			targets = append(targets, conn.Sender())
		}
	}
	m.mu.RUnlock()

	return workersBroadcast(ctx, targets, msg, min(len(targets), maxBroadcastWorkers))
}

func (m *Manager[KeyType]) BroadcastText(ctx context.Context, str string, exclude ...KeyType) (int, error) {
	return m.Broadcast(ctx, NewTextMessage(str), exclude...)
}

// Shutdown sends a going-away close to every connection and unregisters all of them.
func (m *Manager[KeyType]) Shutdown(ctx context.Context) {
	m.mu.RLock()
	keys := make([]KeyType, 0, len(m.conns))
	for key := range m.conns {
		keys = append(keys, key)
	}
	m.mu.RUnlock()

	for _, key := range keys {
		if conn, ok := m.GetConn(key); ok {
			_ = conn.Send(ctx, NewCloseMessage(CloseGoingAway, "server shutting down"))
		}
		_ = m.Unregister(key)
	}
}

func workersBroadcast(ctx context.Context, targets []*Sender, msg Message, workers int) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if workers == 0 {
		return 0, nil
	}

	var wg sync.WaitGroup
	var n atomic.Int64
	ch := make(chan *Sender, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range ch {
				if ctx.Err() != nil {
					continue
				}
				if err := s.Send(ctx, msg); err == nil {
					n.Add(1)
				}
			}
		}()
	}

	for _, s := range targets {
		if ctx.Err() != nil {
			break
		}
		ch <- s
	}
	close(ch)
	wg.Wait()

	return int(n.Load()), ctx.Err()
}
