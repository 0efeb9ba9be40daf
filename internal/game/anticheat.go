package game

import (
	"time"

	"github.com/vracer/server/config"
)

// CheatReason tags which heuristic fired.
type CheatReason string

const (
	ReasonOverspeed CheatReason = "overspeed"
	ReasonTeleport  CheatReason = "teleport"
)

// CheatEvent is the evidence record for one detection. It is written
// once at detection time and never mutated afterward.
type CheatEvent struct {
	SessionID string
	MatchID   string
	Reason    CheatReason
	At        time.Time
	State     PlayerState // offending player's state at detection time
}

// CheatSink receives detection evidence for offline review.
// Implementations are best-effort; a failed append never affects the
// simulation.
type CheatSink interface {
	AppendCheatEvent(ev CheatEvent) error
}

// AntiCheat applies the overspeed and teleport heuristics. Both are
// deterrents against client-driven exploitation under a
// trust-the-server architecture, not a security guarantee. Detection
// corrects state and records evidence; it never disconnects or bans,
// and the offending client is never told detection occurred.
type AntiCheat struct {
	maxSpeed         float64
	overspeedFactor  float64
	teleportDistance float64
}

// NewAntiCheat creates a detector with the configured thresholds.
func NewAntiCheat() *AntiCheat {
	return &AntiCheat{
		maxSpeed:         config.MaxSpeed,
		overspeedFactor:  config.OverspeedTolerance,
		teleportDistance: config.TeleportDistance,
	}
}

// CheckSpeed clamps an implausible forward speed back to the
// legitimate maximum. Reports whether the heuristic fired. A clamped
// tick still moves the player, using the corrected speed. Implausible
// reverse motion is left to the displacement check, which zeroes it.
func (ac *AntiCheat) CheckSpeed(p *PlayerState) bool {
	if p.Speed <= ac.maxSpeed*ac.overspeedFactor {
		return false
	}

	p.Speed = ac.maxSpeed
	return true
}

// CheckTeleport inspects the single-tick displacement. If it exceeds
// the threshold the player's speed is zeroed and the move must be
// rejected by the caller (the player stays at the prior position).
func (ac *AntiCheat) CheckTeleport(p *PlayerState, displacement float64) bool {
	if displacement <= ac.teleportDistance {
		return false
	}

	p.Speed = 0
	return true
}
