package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vracer/server/config"
)

func TestOverspeedClampedAndRecorded(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMatch(t, nil, nil, sink)

	p := m.players["p1"]
	p.Angle = 0
	p.Speed = config.MaxSpeed * 1.3
	preX := p.X

	m.step(testDT)

	assert.Equal(t, config.MaxSpeed, p.Speed, "implausible speed is clamped, not merely logged")
	assert.Greater(t, p.X, preX, "overspeed does not block the position update")

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, ReasonOverspeed, events[0].Reason)
	assert.Equal(t, "p1", events[0].SessionID)
	assert.Equal(t, "m_test", events[0].MatchID)
	assert.Equal(t, config.MaxSpeed, events[0].State.Speed)
	assert.False(t, events[0].At.IsZero())
}

func TestOverspeedWithinToleranceIsIgnored(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMatch(t, nil, nil, sink)

	// Just under the 1.2x ceiling even after this tick's drag.
	m.players["p1"].Speed = config.MaxSpeed * 1.1

	m.step(testDT)

	assert.Empty(t, sink.all())
}

func TestTeleportRejectsMoveAndZeroesSpeed(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMatch(t, nil, nil, sink)

	// Extreme spoofed reverse speed: the per-tick displacement blows
	// past the teleport threshold.
	p := m.players["p1"]
	p.Speed = -60000
	preX, preY := p.X, p.Y

	m.step(testDT)

	assert.Zero(t, p.Speed)
	assert.Equal(t, preX, p.X, "rejected move leaves the player at the prior position")
	assert.Equal(t, preY, p.Y)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, ReasonTeleport, events[0].Reason)
	assert.Equal(t, "p1", events[0].SessionID)
}

func TestTeleportRecoversNextTick(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMatch(t, nil, nil, sink)

	p := m.players["p1"]
	p.Speed = -60000
	m.step(testDT)
	require.Len(t, sink.all(), 1)

	// With speed zeroed the next tick is clean.
	m.inputs["p1"] = ControlInput{Throttle: 1}
	m.step(testDT)
	assert.Len(t, sink.all(), 1)
	assert.Greater(t, p.Speed, 0.0)
}

func TestDetectorThresholds(t *testing.T) {
	ac := NewAntiCheat()

	p := &PlayerState{Speed: config.MaxSpeed * config.OverspeedTolerance}
	assert.False(t, ac.CheckSpeed(p), "at the ceiling is still legitimate")

	p.Speed = config.MaxSpeed*config.OverspeedTolerance + 1
	assert.True(t, ac.CheckSpeed(p))
	assert.Equal(t, config.MaxSpeed, p.Speed)

	p = &PlayerState{Speed: 50}
	assert.False(t, ac.CheckTeleport(p, config.TeleportDistance))
	assert.Equal(t, 50.0, p.Speed)

	assert.True(t, ac.CheckTeleport(p, config.TeleportDistance+1))
	assert.Zero(t, p.Speed)
}
