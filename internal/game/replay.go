package game

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// SnapshotPlayer is the precision-reduced per-player replay tuple:
// integral position, heading scaled x1000 and rounded, rounded speed.
type SnapshotPlayer struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Angle int `json:"a"`
	Speed int `json:"s"`
}

// Snapshot records one simulation tick for every player.
type Snapshot struct {
	T       int64                     `json:"t"` // unix milliseconds
	Players map[string]SnapshotPlayer `json:"players"`
}

// ReplayStore persists a finalized replay. Failures are the caller's
// to log; they never abort match shutdown.
type ReplayStore interface {
	SaveReplay(id, matchID string, data []byte, createdAt time.Time) error
}

// ReplayRecorder keeps the most recent snapshots of a match in a
// fixed-size ring. When the ring is full the oldest entry is evicted.
// Not goroutine-safe: the owning Match serializes access under its
// lock.
type ReplayRecorder struct {
	entries []Snapshot
	start   int
	count   int
}

// NewReplayRecorder creates a recorder retaining at most capacity
// snapshots.
func NewReplayRecorder(capacity int) *ReplayRecorder {
	return &ReplayRecorder{entries: make([]Snapshot, capacity)}
}

// Record appends a snapshot, evicting the oldest when full.
func (r *ReplayRecorder) Record(s Snapshot) {
	if r.count < len(r.entries) {
		r.entries[(r.start+r.count)%len(r.entries)] = s
		r.count++
		return
	}
	r.entries[r.start] = s
	r.start = (r.start + 1) % len(r.entries)
}

// Len returns the number of retained snapshots.
func (r *ReplayRecorder) Len() int {
	return r.count
}

// Snapshots returns the retained snapshots in order, oldest first.
func (r *ReplayRecorder) Snapshots() []Snapshot {
	out := make([]Snapshot, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.entries[(r.start+i)%len(r.entries)]
	}
	return out
}

// Finalize serializes the buffer and hands it to the store under a
// fresh replay id. The record is immutable once written.
func (r *ReplayRecorder) Finalize(matchID string, store ReplayStore, now time.Time) (string, error) {
	data, err := json.Marshal(r.Snapshots())
	if err != nil {
		return "", err
	}

	id := "r_" + uuid.NewString()
	if err := store.SaveReplay(id, matchID, data, now); err != nil {
		return "", err
	}
	return id, nil
}

// SnapshotOf reduces a player state to its replay tuple.
func SnapshotOf(p *PlayerState) SnapshotPlayer {
	return SnapshotPlayer{
		X:     int(math.Round(p.X)),
		Y:     int(math.Round(p.Y)),
		Angle: int(math.Round(p.Angle * 1000)),
		Speed: int(math.Round(p.Speed)),
	}
}
