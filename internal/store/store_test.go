package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vracer/server/config"
	"github.com/vracer/server/internal/game"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertPlayerRefreshesWithoutResettingRating(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertPlayer("s1", "Alice", "#ff0000"))

	rows, err := s.TopPlayers(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, config.DefaultRating, rows[0].Elo)

	// Give the player a non-default rating, then upsert again.
	require.NoError(t, s.UpsertPlayer("s2", "Bob", "#00ff00"))
	require.NoError(t, s.RecordMatchResult("s1", "s2"))
	require.NoError(t, s.UpsertPlayer("s1", "Alicia", "#ffffff"))

	rows, err = s.TopPlayers(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alicia", rows[0].Name)
	assert.Equal(t, 1215, rows[0].Elo, "upsert must not reset rating")
}

func TestPlayerRatingDefaultsForUnknown(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, config.DefaultRating, s.PlayerRating("ghost"))
}

func TestRecordMatchResultAppliesElo(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertPlayer("w", "Winner", "#fff"))
	require.NoError(t, s.UpsertPlayer("l", "Loser", "#000"))

	require.NoError(t, s.RecordMatchResult("w", "l"))

	// Evenly matched: K/2 transferred.
	assert.Equal(t, 1215, s.PlayerRating("w"))
	assert.Equal(t, 1185, s.PlayerRating("l"))

	rows, err := s.TopPlayers(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "w", rows[0].ID)
	assert.Equal(t, 1, rows[0].Wins)
	assert.Equal(t, 1, rows[1].Losses)
}

func TestSaveAndFetchReplay(t *testing.T) {
	s := newTestStore(t)
	body := []byte(`[{"t":1,"players":{}}]`)

	require.NoError(t, s.SaveReplay("r_abc", "m_1", body, time.Now()))

	rows, err := s.RecentReplays(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r_abc", rows[0].ID)
	assert.Equal(t, "m_1", rows[0].MatchID)

	data, err := s.ReplayData("r_abc")
	require.NoError(t, err)
	assert.Equal(t, body, data)

	_, err = s.ReplayData("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendCheatEvent(t *testing.T) {
	s := newTestStore(t)

	ev := game.CheatEvent{
		SessionID: "s1",
		MatchID:   "m_1",
		Reason:    game.ReasonTeleport,
		At:        time.Now(),
		State:     game.PlayerState{ID: "s1", X: 100, Y: 200},
	}
	require.NoError(t, s.AppendCheatEvent(ev))
	require.NoError(t, s.AppendCheatEvent(ev))

	n, err := s.CheatEventCount("m_1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CheatEventCount("m_2")
	require.NoError(t, err)
	assert.Zero(t, n)
}
