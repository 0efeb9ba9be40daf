package matchmaker

import (
	"log"
	"sync"

	"github.com/vracer/server/internal/game"
)

// Registry tracks live matches by id. All message handlers share one
// registry, so every operation is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*game.Match
}

// NewRegistry creates an empty match registry.
func NewRegistry() *Registry {
	return &Registry{
		matches: make(map[string]*game.Match),
	}
}

// Add registers a match.
func (r *Registry) Add(m *game.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.matches[m.ID] = m
}

// Get returns the match with the given id, or nil.
func (r *Registry) Get(id string) *game.Match {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.matches[id]
}

// Remove stops and drops a match. No-op for unknown ids.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	m, ok := r.matches[id]
	if ok {
		delete(r.matches, id)
	}
	r.mu.Unlock()

	if ok {
		m.Stop()
	}
}

// RemoveSession drops a disconnected session from every match it is
// part of. Safe to call for sessions that never joined a match.
// Matches left empty are stopped and retired.
func (r *Registry) RemoveSession(sessionID string) {
	r.mu.Lock()
	var emptied []*game.Match
	for id, m := range r.matches {
		if m.RemovePlayer(sessionID) == 0 {
			delete(r.matches, id)
			emptied = append(emptied, m)
		}
	}
	r.mu.Unlock()

	for _, m := range emptied {
		log.Printf("Match %s emptied, retiring", m.ID)
		m.Stop()
	}
}

// Stats returns the number of live matches and players across them.
func (r *Registry) Stats() (matches, players int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.matches {
		players += m.PlayerCount()
	}
	return len(r.matches), players
}
