// Package session owns the process-wide maps from session id to
// connection and display metadata. Entries are inserted on connect
// and removed on disconnect; readers treat a missing entry as
// "unreachable, skip", never as an error.
package session

import "sync"

// Meta is display metadata for a connected session.
type Meta struct {
	Name  string
	Color string
}

// Conn is the outbound side of one client connection.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Registry maps live sessions to their connections and metadata.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
	meta  map[string]Meta
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
		meta:  make(map[string]Meta),
	}
}

// Register inserts a session on connection open.
func (r *Registry) Register(sessionID string, c Conn, m Meta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[sessionID] = c
	r.meta[sessionID] = m
}

// Unregister removes a session on connection close. No-op if absent.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, sessionID)
	delete(r.meta, sessionID)
}

// Conn returns the session's connection, if still present.
func (r *Registry) Conn(sessionID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[sessionID]
	return c, ok
}

// Meta returns the session's display metadata, if still present.
func (r *Registry) Meta(sessionID string) (Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.meta[sessionID]
	return m, ok
}

// UpdateMeta merges non-empty fields into the session's metadata.
// No-op for disconnected sessions.
func (r *Registry) UpdateMeta(sessionID string, m Meta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.meta[sessionID]
	if !ok {
		return
	}
	if m.Name != "" {
		cur.Name = m.Name
	}
	if m.Color != "" {
		cur.Color = m.Color
	}
	r.meta[sessionID] = cur
}

// Count returns the number of connected sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
