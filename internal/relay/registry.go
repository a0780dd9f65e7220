package relay

import (
	"context"
	"sync"

	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
	"github.com/Jobcall26/jobdial-server/internal/store"
)

// Close codes the relay uses beyond the standard WebSocket range.
const (
	// CloseSuperseded is sent to a connection replaced by a newer login
	// for the same user.
	CloseSuperseded = 4000
	// CloseAuthTimeout is sent when a socket never authenticates within
	// the configured window.
	CloseAuthTimeout = 4001
)

// Transport is the opaque send/close capability a live socket exposes to
// the relay. Send must be safe for concurrent callers.
type Transport interface {
	Send(ctx context.Context, frame proto.Outbound) error
	Close(code int, reason string) error
}

// Conn is an authenticated connection as held by the Registry.
type Conn struct {
	ID     string
	UserID int64
	Role   store.Role
	tr     Transport
}

// NewConn wraps a transport with the identity it authenticated as.
func NewConn(id string, userID int64, role store.Role, tr Transport) *Conn {
	return &Conn{ID: id, UserID: userID, Role: role, tr: tr}
}

// Send writes one frame to the connection.
func (c *Conn) Send(ctx context.Context, frame proto.Outbound) error {
	return c.tr.Send(ctx, frame)
}

// Close tears down the underlying transport.
func (c *Conn) Close(code int, reason string) error {
	return c.tr.Close(code, reason)
}

// Registry maps each user to at most one live connection. Connect,
// disconnect and broadcast run on different goroutines, so all access
// goes through the mutex.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]*Conn
}

// NewRegistry returns an empty registry. One instance lives for the whole
// server process, owned by the composition root.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]*Conn)}
}

// Register inserts or replaces the entry for the connection's user and
// returns the superseded connection, if any. Closing the superseded
// transport is the caller's decision.
func (r *Registry) Register(c *Conn) (prev *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.conns[c.UserID]
	r.conns[c.UserID] = c
	return prev
}

// Unregister removes the entry for userID only if c is still the current
// connection. Reports whether an entry was removed, so a superseded
// connection's teardown does not evict its replacement.
func (r *Registry) Unregister(userID int64, c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.conns[userID]
	if !ok || cur != c {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID int64) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Snapshot returns a copy of all current connections. Broadcasts iterate
// the snapshot, so a connection registered afterwards will not receive
// that broadcast.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
