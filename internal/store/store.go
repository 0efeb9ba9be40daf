// Package store persists player profiles, match replays, and cheat
// evidence in a local sqlite database. Every write is best-effort
// from the simulation's perspective: callers log failures and move
// on.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vracer/server/config"
	"github.com/vracer/server/internal/game"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name TEXT,
			color TEXT,
			created_at INTEGER,
			last_seen INTEGER,
			wins INTEGER DEFAULT 0,
			losses INTEGER DEFAULT 0,
			elo INTEGER DEFAULT 1200
		);
		CREATE TABLE IF NOT EXISTS replays (
			id TEXT PRIMARY KEY,
			match_id TEXT,
			data TEXT,
			created_at INTEGER
		);
		CREATE TABLE IF NOT EXISTS cheat_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			match_id TEXT,
			reason TEXT,
			at INTEGER,
			state TEXT
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertPlayer creates or refreshes a player profile. Rating and
// win/loss tallies are preserved on update; last_seen is refreshed.
func (s *Store) UpsertPlayer(id, name, color string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.Exec(`
		INSERT INTO players (id, name, color, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, color=excluded.color, last_seen=excluded.last_seen
	`, id, name, color, now, now)
	return err
}

// PlayerRating returns the player's rating, or the default for
// unknown players.
func (s *Store) PlayerRating(id string) int {
	var elo int
	err := s.db.QueryRow(`SELECT elo FROM players WHERE id = ?`, id).Scan(&elo)
	if err != nil {
		return config.DefaultRating
	}
	return elo
}

// SaveReplay stores a finalized replay body. Implements
// game.ReplayStore.
func (s *Store) SaveReplay(id, matchID string, data []byte, createdAt time.Time) error {
	_, err := s.db.Exec(`INSERT INTO replays (id, match_id, data, created_at) VALUES (?, ?, ?, ?)`,
		id, matchID, string(data), createdAt.UnixMilli())
	return err
}

// AppendCheatEvent records detection evidence for offline review.
// Implements game.CheatSink. Events are append-only and never
// updated.
func (s *Store) AppendCheatEvent(ev game.CheatEvent) error {
	state, err := json.Marshal(ev.State)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO cheat_events (session_id, match_id, reason, at, state) VALUES (?, ?, ?, ?, ?)`,
		ev.SessionID, ev.MatchID, string(ev.Reason), ev.At.UnixMilli(), string(state))
	return err
}

// RecordMatchResult applies the standard ELO update (K=30) to a
// winner/loser pair and bumps their tallies. Unknown players are
// treated as freshly rated; their rows are only written if they
// exist.
func (s *Store) RecordMatchResult(winnerID, loserID string) error {
	w := s.PlayerRating(winnerID)
	l := s.PlayerRating(loserID)

	expected := 1 / (1 + math.Pow(10, float64(l-w)/400))
	newW := int(math.Round(float64(w) + config.RatingK*(1-expected)))
	newL := int(math.Round(float64(l) - config.RatingK*(1-expected)))

	if _, err := s.db.Exec(`UPDATE players SET elo=?, wins=wins+1 WHERE id=?`, newW, winnerID); err != nil {
		return err
	}
	_, err := s.db.Exec(`UPDATE players SET elo=?, losses=losses+1 WHERE id=?`, newL, loserID)
	return err
}

// PlayerRow is one row of the top-players projection.
type PlayerRow struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Elo    int    `json:"elo"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
}

// TopPlayers lists players ordered by rating, best first.
func (s *Store) TopPlayers(limit int) ([]PlayerRow, error) {
	rows, err := s.db.Query(`SELECT id, name, color, elo, wins, losses FROM players ORDER BY elo DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerRow
	for rows.Next() {
		var p PlayerRow
		if err := rows.Scan(&p.ID, &p.Name, &p.Color, &p.Elo, &p.Wins, &p.Losses); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplayRow is one row of the recent-replays projection.
type ReplayRow struct {
	ID        string `json:"id"`
	MatchID   string `json:"matchId"`
	CreatedAt int64  `json:"createdAt"`
}

// RecentReplays lists replay records, newest first.
func (s *Store) RecentReplays(limit int) ([]ReplayRow, error) {
	rows, err := s.db.Query(`SELECT id, match_id, created_at FROM replays ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReplayRow
	for rows.Next() {
		var r ReplayRow
		if err := rows.Scan(&r.ID, &r.MatchID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplayData returns a replay body by id.
func (s *Store) ReplayData(id string) ([]byte, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM replays WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

// CheatEventCount returns the number of recorded events for a match.
// Used by the review tooling.
func (s *Store) CheatEventCount(matchID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cheat_events WHERE match_id = ?`, matchID).Scan(&n)
	return n, err
}
