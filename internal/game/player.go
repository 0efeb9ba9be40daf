package game

import (
	"math/rand"

	"github.com/vracer/server/config"
)

// Participant identifies one match member at creation time.
// Name and color are read-only references to data owned by the
// connection layer.
type Participant struct {
	SessionID string
	Name      string
	Color     string
}

// PlayerState is the authoritative per-player simulation state.
// It is owned exclusively by the player's Match and mutated only
// under the match lock.
type PlayerState struct {
	// Identity
	ID    string // session id
	Name  string
	Color string

	// Kinematics
	X     float64
	Y     float64
	Angle float64 // radians, wraps implicitly via trigonometric use
	Speed float64 // signed

	// Race progress. Reserved: nothing in the simulation advances
	// these yet.
	Lap             int
	CheckpointIndex int
}

// NewPlayerState creates a player at a random spawn position.
func NewPlayerState(p Participant, rng *rand.Rand) *PlayerState {
	return &PlayerState{
		ID:    p.SessionID,
		Name:  p.Name,
		Color: p.Color,
		X:     config.SpawnMinX + rng.Float64()*config.SpawnRangeX,
		Y:     config.SpawnMinY + rng.Float64()*config.SpawnRangeY,
	}
}
