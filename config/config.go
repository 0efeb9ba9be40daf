package config

import "time"

// Game constants - must match client expectations for a consistent feel
const (
	// Arena
	ArenaWidth  = 1024.0
	ArenaHeight = 600.0

	// Simulation
	TickRate      = 60 // Hz
	BroadcastRate = 10 // Hz

	// Kinematics
	MaxSpeed  = 520.0
	AccelRate = 120.0 // units/s^2 at full throttle
	BrakeRate = 200.0 // units/s^2 at full brake
	DragRate  = 1.5   // rolling friction, independent of input
	TurnRate  = 3.0   // rad/s at full steer

	// Turn authority scales with speed but never drops below the floor,
	// so a stationary car can still turn.
	TurnAuthorityFloor = 0.2
	TurnSpeedScale     = 100.0

	// Spawn area
	SpawnMinX   = 200.0
	SpawnRangeX = 300.0
	SpawnMinY   = 300.0
	SpawnRangeY = 150.0

	// Anti-cheat thresholds. Generous multiples of legitimate maxima
	// so normal network jitter never trips them.
	OverspeedTolerance = 1.2
	TeleportDistance   = 600.0

	// Input
	MinInputInterval = 15 * time.Millisecond

	// Replay
	ReplayCapacity = 1000

	// Matchmaking
	MinMatchPlayers = 2

	// Rating
	DefaultRating = 1200
	RatingK       = 30
)

// ServerConfig holds runtime server settings.
type ServerConfig struct {
	Host       string
	Port       int
	DBPath     string
	EnableCORS bool
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:       "0.0.0.0",
		Port:       7100,
		DBPath:     "data.db",
		EnableCORS: true,
	}
}
