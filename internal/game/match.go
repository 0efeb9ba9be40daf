// Package game implements the authoritative match simulation: input
// gating, per-tick kinematics, anti-cheat heuristics, replay
// recording, and the match lifecycle with its broadcast fan-out.
package game

import (
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/vracer/server/config"
	"github.com/vracer/server/internal/network"
)

// MatchState tracks the match lifecycle. Transitions are one-way:
// Created -> Running -> Stopped. A stopped match is never resumed.
type MatchState int

const (
	MatchCreated MatchState = iota
	MatchRunning
	MatchStopped
)

// Broadcaster delivers a tagged payload to one session's outbound
// channel. Implementations must treat an unknown or disconnected
// session as a skip, not an error.
type Broadcaster interface {
	SendTo(sessionID, msgType string, payload any)
}

// Match owns one simulation instance and wires the input gate,
// physics, anti-cheat, and replay recorder together.
//
// Each running match drives two independent periodic tasks: a
// simulation tick at tickRate Hz and a broadcast tick at
// broadcastRate Hz. Matches run concurrently and share no simulation
// state.
//
// Thread safety: the match mutex guards the player map and the
// control vectors. ApplyInput may race with an in-progress step from
// another goroutine; the lock guarantees a step sees either the
// previous or the fully-replaced control vector, never a torn one.
type Match struct {
	mu sync.Mutex

	ID string

	participants []string // ordered session ids
	players      map[string]*PlayerState
	inputs       map[string]ControlInput

	gate     *InputGate
	physics  *Physics
	detector *AntiCheat
	replay   *ReplayRecorder

	tickRate      int
	broadcastRate int

	state    MatchState
	stopChan chan struct{}

	sender  Broadcaster
	replays ReplayStore
	cheats  CheatSink

	now func() time.Time
}

// NewMatch creates a match with the given participants (>= 2 for a
// meaningful race) at random spawn positions. The match is not
// started; call Start to begin the tick loops.
func NewMatch(id string, participants []Participant, sender Broadcaster, replays ReplayStore, cheats CheatSink) *Match {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	m := &Match{
		ID:            id,
		players:       make(map[string]*PlayerState, len(participants)),
		inputs:        make(map[string]ControlInput, len(participants)),
		gate:          NewInputGate(),
		physics:       NewPhysics(),
		detector:      NewAntiCheat(),
		replay:        NewReplayRecorder(config.ReplayCapacity),
		tickRate:      config.TickRate,
		broadcastRate: config.BroadcastRate,
		stopChan:      make(chan struct{}),
		sender:        sender,
		replays:       replays,
		cheats:        cheats,
		now:           time.Now,
	}

	for _, p := range participants {
		m.participants = append(m.participants, p.SessionID)
		m.players[p.SessionID] = NewPlayerState(p, rng)
		m.inputs[p.SessionID] = ControlInput{AcceptedAt: m.now()}
	}

	return m
}

// Start begins the simulation and broadcast loops.
// Safe to call multiple times - a running or stopped match is left
// alone.
func (m *Match) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != MatchCreated {
		return
	}
	m.state = MatchRunning

	go m.run()
	log.Printf("Match %s started (%d players)", m.ID, len(m.players))
}

// Stop cancels both periodic tasks, transitions to Stopped, and
// finalizes the replay. Safe to call multiple times and safe to call
// on a match that was never started; the replay is persisted exactly
// once.
func (m *Match) Stop() {
	m.mu.Lock()
	if m.state == MatchStopped {
		m.mu.Unlock()
		return
	}
	wasRunning := m.state == MatchRunning
	m.state = MatchStopped
	m.mu.Unlock()

	if wasRunning {
		close(m.stopChan)
	}

	m.finalizeReplay()
	log.Printf("Match %s stopped", m.ID)
}

// State returns the current lifecycle state.
func (m *Match) State() MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ApplyInput feeds one untrusted client input through the gate. Input
// arriving faster than the minimum interval is silently dropped;
// accepted input replaces the session's stored control vector
// atomically. Unknown sessions and stopped matches are no-ops.
func (m *Match) ApplyInput(sessionID string, raw RawInput) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == MatchStopped {
		return
	}
	if _, ok := m.players[sessionID]; !ok {
		return
	}

	in, ok := m.gate.Accept(sessionID, raw, m.now())
	if !ok {
		return
	}
	m.inputs[sessionID] = in
}

// RemovePlayer drops a session from the match. No-op if the session
// is not a member. Returns the number of players remaining so the
// caller can retire an emptied match.
func (m *Match) RemovePlayer(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[sessionID]; !ok {
		return len(m.players)
	}

	delete(m.players, sessionID)
	delete(m.inputs, sessionID)
	m.gate.Forget(sessionID)
	for i, sid := range m.participants {
		if sid == sessionID {
			m.participants = append(m.participants[:i], m.participants[i+1:]...)
			break
		}
	}
	return len(m.players)
}

// PlayerCount returns the current number of players in the match.
func (m *Match) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

// Participants returns the ordered session ids still in the match.
func (m *Match) Participants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.participants))
	copy(out, m.participants)
	return out
}

// run drives the two periodic tasks until the match is stopped.
// Simulation uses a fixed timestep of 1/tickRate seconds.
func (m *Match) run() {
	simTicker := time.NewTicker(time.Second / time.Duration(m.tickRate))
	broadcastTicker := time.NewTicker(time.Second / time.Duration(m.broadcastRate))
	defer simTicker.Stop()
	defer broadcastTicker.Stop()

	dt := 1.0 / float64(m.tickRate)

	for {
		select {
		case <-m.stopChan:
			return

		case <-simTicker.C:
			m.step(dt)

		case <-broadcastTicker.C:
			m.broadcastState()
		}
	}
}

// step advances every player by one fixed tick and records a replay
// snapshot. Anti-cheat runs inline: overspeed is corrected before the
// heading integration, teleport rejects the position update entirely.
func (m *Match) step(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == MatchStopped {
		return
	}

	now := m.now()

	for _, sid := range m.participants {
		p := m.players[sid]
		in := m.inputs[sid]

		m.physics.IntegrateSpeed(p, in, dt)
		if m.detector.CheckSpeed(p) {
			m.flagCheatLocked(p, ReasonOverspeed, now)
		}

		m.physics.IntegrateHeading(p, in, dt)

		nx, ny := m.physics.ProposePosition(p, dt)
		if m.detector.CheckTeleport(p, math.Hypot(nx-p.X, ny-p.Y)) {
			// Move rejected; the player stays put this tick.
			m.flagCheatLocked(p, ReasonTeleport, now)
			continue
		}

		p.X = Clamp(nx, 0, config.ArenaWidth)
		p.Y = Clamp(ny, 0, config.ArenaHeight)
	}

	snap := Snapshot{T: now.UnixMilli(), Players: make(map[string]SnapshotPlayer, len(m.players))}
	for sid, p := range m.players {
		snap.Players[sid] = SnapshotOf(p)
	}
	m.replay.Record(snap)
}

// broadcastState pushes the full player map to every participant.
// Participants without a reachable channel are skipped by the sender.
func (m *Match) broadcastState() {
	m.mu.Lock()
	payload := network.StatePayload{
		MatchID: m.ID,
		Players: make(map[string]network.PlayerStateData, len(m.players)),
		T:       m.now().UnixMilli(),
	}
	for sid, p := range m.players {
		payload.Players[sid] = network.PlayerStateData{
			ID:              p.ID,
			Name:            p.Name,
			Color:           p.Color,
			X:               p.X,
			Y:               p.Y,
			Angle:           p.Angle,
			Speed:           p.Speed,
			Lap:             p.Lap,
			CheckpointIndex: p.CheckpointIndex,
		}
	}
	targets := make([]string, len(m.participants))
	copy(targets, m.participants)
	m.mu.Unlock()

	if m.sender == nil {
		return
	}
	for _, sid := range targets {
		m.sender.SendTo(sid, network.MsgState, payload)
	}
}

// flagCheatLocked records detection evidence. Caller holds the match
// lock. Persistence is best-effort; failure is logged only.
func (m *Match) flagCheatLocked(p *PlayerState, reason CheatReason, now time.Time) {
	log.Printf("Cheat flagged: session=%s match=%s reason=%s", p.ID, m.ID, reason)

	if m.cheats == nil {
		return
	}
	ev := CheatEvent{
		SessionID: p.ID,
		MatchID:   m.ID,
		Reason:    reason,
		At:        now,
		State:     *p,
	}
	if err := m.cheats.AppendCheatEvent(ev); err != nil {
		log.Printf("Failed to record cheat event for %s: %v", p.ID, err)
	}
}

// finalizeReplay persists the replay buffer. Persistence failure is
// logged and swallowed; it must not abort match shutdown.
func (m *Match) finalizeReplay() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.replays == nil {
		return
	}
	id, err := m.replay.Finalize(m.ID, m.replays, m.now())
	if err != nil {
		log.Printf("Replay save failed for match %s: %v", m.ID, err)
		return
	}
	log.Printf("Replay %s saved for match %s (%d ticks)", id, m.ID, m.replay.Len())
}
