package game

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vracer/server/config"
)

// RawInput is an untrusted control message straight off the wire.
// Fields may hold any value the client chose to send.
type RawInput struct {
	Throttle float64
	Brake    float64
	Steer    float64
	Seq      uint32
}

// ControlInput is a sanitized control vector. Values are always in
// range; AcceptedAt is the server time the input passed the gate.
type ControlInput struct {
	Throttle   float64 // [0,1]
	Brake      float64 // [0,1]
	Steer      float64 // [-1,1]
	Seq        uint32  // client-supplied, advisory
	AcceptedAt time.Time
}

// InputGate rate-limits and sanitizes per-session input before it
// reaches the simulation. Each session gets its own limiter enforcing
// the minimum interval between accepted updates; input arriving
// faster is silently dropped, not queued.
type InputGate struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

// NewInputGate creates a gate enforcing the configured minimum
// interval between accepted inputs per session.
func NewInputGate() *InputGate {
	return &InputGate{
		interval: config.MinInputInterval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Accept validates one raw input against the session's rate limiter.
// On success it returns the clamped control vector; otherwise the
// input is dropped and ok is false. Out-of-range values are clamped
// silently, never rejected.
func (g *InputGate) Accept(sessionID string, raw RawInput, now time.Time) (ControlInput, bool) {
	if !g.limiter(sessionID).AllowN(now, 1) {
		return ControlInput{}, false
	}

	return ControlInput{
		Throttle:   Clamp(raw.Throttle, 0, 1),
		Brake:      Clamp(raw.Brake, 0, 1),
		Steer:      Clamp(raw.Steer, -1, 1),
		Seq:        raw.Seq,
		AcceptedAt: now,
	}, true
}

// Forget drops the session's limiter state.
func (g *InputGate) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.limiters, sessionID)
}

func (g *InputGate) limiter(sessionID string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	lim, ok := g.limiters[sessionID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(g.interval), 1)
		g.limiters[sessionID] = lim
	}
	return lim
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
