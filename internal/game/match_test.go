package game

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vracer/server/config"
	"github.com/vracer/server/internal/network"
)

type fakeSink struct {
	mu     sync.Mutex
	events []CheatEvent
}

func (f *fakeSink) AppendCheatEvent(ev CheatEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSink) all() []CheatEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CheatEvent(nil), f.events...)
}

type fakeReplayStore struct {
	mu      sync.Mutex
	saves   int
	lastID  string
	matchID string
	data    []byte
	fail    error
}

func (f *fakeReplayStore) SaveReplay(id, matchID string, data []byte, createdAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.saves++
	f.lastID = id
	f.matchID = matchID
	f.data = data
	return nil
}

func (f *fakeReplayStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type sentMsg struct {
	sid     string
	msgType string
	payload any
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeBroadcaster) SendTo(sessionID, msgType string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{sid: sessionID, msgType: msgType, payload: payload})
}

func (f *fakeBroadcaster) all() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

func newTestMatch(t *testing.T, sender Broadcaster, replays ReplayStore, cheats CheatSink) *Match {
	t.Helper()
	return NewMatch("m_test", []Participant{
		{SessionID: "p1", Name: "Alice", Color: "#ff0000"},
		{SessionID: "p2", Name: "Bob", Color: "#00ff00"},
	}, sender, replays, cheats)
}

func TestNewMatchSpawnsPlayersInArena(t *testing.T) {
	m := newTestMatch(t, nil, nil, nil)

	require.Equal(t, 2, m.PlayerCount())
	for _, p := range m.players {
		assert.GreaterOrEqual(t, p.X, 0.0)
		assert.LessOrEqual(t, p.X, config.ArenaWidth)
		assert.GreaterOrEqual(t, p.Y, 0.0)
		assert.LessOrEqual(t, p.Y, config.ArenaHeight)
		assert.Zero(t, p.Speed)
		assert.Zero(t, p.Lap)
	}
}

func TestStopIsIdempotentAndSafeWithoutStart(t *testing.T) {
	store := &fakeReplayStore{}
	m := newTestMatch(t, nil, store, nil)

	m.Stop()
	assert.Equal(t, MatchStopped, m.State())
	assert.Equal(t, 1, store.saveCount())

	m.Stop()
	assert.Equal(t, 1, store.saveCount(), "second stop must not persist a second replay")
}

func TestStopPersistsReplayOnceAfterRun(t *testing.T) {
	store := &fakeReplayStore{}
	m := newTestMatch(t, &fakeBroadcaster{}, store, nil)

	m.Start()
	assert.Equal(t, MatchRunning, m.State())

	// Start again is a no-op.
	m.Start()

	time.Sleep(250 * time.Millisecond)
	m.Stop()
	m.Stop()

	assert.Equal(t, MatchStopped, m.State())
	assert.Equal(t, 1, store.saveCount())

	// A stopped match is never resumed.
	m.Start()
	assert.Equal(t, MatchStopped, m.State())
}

func TestStopSurvivesReplayStoreFailure(t *testing.T) {
	store := &fakeReplayStore{fail: errors.New("disk full")}
	m := newTestMatch(t, nil, store, nil)

	m.Stop()
	assert.Equal(t, MatchStopped, m.State())
}

func TestRunningMatchBroadcastsState(t *testing.T) {
	sender := &fakeBroadcaster{}
	m := newTestMatch(t, sender, &fakeReplayStore{}, nil)

	m.Start()
	time.Sleep(250 * time.Millisecond)
	m.Stop()

	msgs := sender.all()
	require.NotEmpty(t, msgs, "expected at least one broadcast in 250ms at 10Hz")
	for _, msg := range msgs {
		assert.Equal(t, network.MsgState, msg.msgType)
	}
}

func TestBroadcastSendsFullStateToEachParticipant(t *testing.T) {
	sender := &fakeBroadcaster{}
	m := newTestMatch(t, sender, nil, nil)

	m.broadcastState()

	msgs := sender.all()
	require.Len(t, msgs, 2)

	seen := map[string]bool{}
	for _, msg := range msgs {
		seen[msg.sid] = true
		state, ok := msg.payload.(network.StatePayload)
		require.True(t, ok)
		assert.Equal(t, "m_test", state.MatchID)
		assert.Len(t, state.Players, 2, "broadcast carries the full player map, not a diff")
		assert.NotZero(t, state.T)
		assert.Equal(t, "Alice", state.Players["p1"].Name)
	}
	assert.True(t, seen["p1"])
	assert.True(t, seen["p2"])
}

func TestStepRecordsOneSnapshotPerTick(t *testing.T) {
	m := newTestMatch(t, nil, nil, nil)

	dt := 1.0 / float64(config.TickRate)
	for i := 0; i < 5; i++ {
		m.step(dt)
	}

	assert.Equal(t, 5, m.replay.Len())
	snap := m.replay.Snapshots()[0]
	assert.Len(t, snap.Players, 2)
	assert.NotZero(t, snap.T)
}

func TestStepAfterStopIsNoop(t *testing.T) {
	m := newTestMatch(t, nil, &fakeReplayStore{}, nil)
	m.Stop()

	m.step(1.0 / float64(config.TickRate))
	assert.Zero(t, m.replay.Len())
}

func TestRemovePlayer(t *testing.T) {
	m := newTestMatch(t, nil, nil, nil)

	assert.Equal(t, 2, m.RemovePlayer("nobody"), "removing an unknown session is a no-op")
	assert.Equal(t, 1, m.RemovePlayer("p1"))
	assert.Equal(t, []string{"p2"}, m.Participants())
	assert.Equal(t, 0, m.RemovePlayer("p2"))
}

func TestApplyInputAfterStopIsNoop(t *testing.T) {
	m := newTestMatch(t, nil, &fakeReplayStore{}, nil)
	m.Stop()

	m.ApplyInput("p1", RawInput{Throttle: 1})
	assert.Zero(t, m.inputs["p1"].Throttle)
}
