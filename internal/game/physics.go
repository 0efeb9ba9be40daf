package game

import (
	"math"

	"github.com/vracer/server/config"
)

// Physics performs the per-tick kinematic integration. It is
// stateless; the Match orchestrates it together with the anti-cheat
// checks each tick.
type Physics struct{}

// NewPhysics creates a new physics engine
func NewPhysics() *Physics {
	return &Physics{}
}

// IntegrateSpeed advances the player's scalar speed by one tick:
// throttle/brake acceleration, then drag. A non-finite result from
// degenerate input is reset to zero rather than reported.
func (ph *Physics) IntegrateSpeed(p *PlayerState, in ControlInput, dt float64) {
	accel := in.Throttle*config.AccelRate - in.Brake*config.BrakeRate
	p.Speed += accel * dt
	p.Speed *= math.Max(0, 1-config.DragRate*dt)

	if math.IsNaN(p.Speed) || math.IsInf(p.Speed, 0) {
		p.Speed = 0
	}
}

// IntegrateHeading advances the heading by the steer input scaled by
// the turn rate and a speed-dependent authority factor.
func (ph *Physics) IntegrateHeading(p *PlayerState, in ControlInput, dt float64) {
	authority := math.Max(config.TurnAuthorityFloor, math.Abs(p.Speed)/config.TurnSpeedScale)
	p.Angle += in.Steer * config.TurnRate * authority * dt
}

// ProposePosition returns the uncommitted position after one tick of
// travel along the current heading. The caller validates the implied
// displacement before committing.
func (ph *Physics) ProposePosition(p *PlayerState, dt float64) (float64, float64) {
	nx := p.X + math.Cos(p.Angle)*p.Speed*dt
	ny := p.Y + math.Sin(p.Angle)*p.Speed*dt
	return nx, ny
}
