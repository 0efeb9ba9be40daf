// Package matchmaker holds the waiting queue of rated players and the
// registry of live matches.
package matchmaker

import (
	"errors"
	"sort"
	"sync"
)

// ErrInsufficientPlayers is returned when the queue cannot fill the
// requested match size. The requester is told explicitly; the queue
// is left untouched.
var ErrInsufficientPlayers = errors.New("not enough players in queue")

// Entry is one waiting session tagged with its skill rating.
type Entry struct {
	SessionID string
	Rating    int
}

// Queue is the ordered matchmaking waiting list. Enqueue, Dequeue,
// and FormMatch are mutually exclusive so ordering holds under
// concurrent arrivals.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a session to the end of the waiting list and
// returns its 1-based position. A session already waiting keeps its
// place: one queue membership per session.
func (q *Queue) Enqueue(sessionID string, rating int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.SessionID == sessionID {
			return i + 1
		}
	}
	q.entries = append(q.entries, Entry{SessionID: sessionID, Rating: rating})
	return len(q.entries)
}

// Dequeue removes the session's entry. No-op if absent, reports
// whether an entry was removed.
func (q *Queue) Dequeue(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.SessionID == sessionID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of waiting sessions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// FormMatch groups the count closest-rated waiting players: the queue
// is sorted ascending by rating and the first count entries removed.
// A proximity heuristic, not a true nearest-neighbor pairing. Returns
// ErrInsufficientPlayers without disturbing the queue when fewer than
// count sessions are waiting.
func (q *Queue) FormMatch(count int) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) < count {
		return nil, ErrInsufficientPlayers
	}

	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].Rating < q.entries[j].Rating
	})

	group := make([]Entry, count)
	copy(group, q.entries[:count])
	q.entries = append([]Entry(nil), q.entries[count:]...)
	return group, nil
}
