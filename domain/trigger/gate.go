package trigger

import (
	"math"
	"time"
)

// State describes the gate's current debounce phase.
type State int

const (
	// StateIdle: no consecutive hits.
	StateIdle State = iota
	// StateAccumulating: hits seen but fewer than required.
	StateAccumulating
	// StateArmed: enough hits, waiting for the minimum interval to pass.
	StateArmed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAccumulating:
		return "Accumulating"
	case StateArmed:
		return "Armed"
	default:
		return "Unknown"
	}
}

// Gate debounces per-frame hit observations into trigger decisions. It
// requires confirmHits consecutive hits and at least minInterval since the
// previous fire. A gate that never fired allows the first fire immediately.
type Gate struct {
	confirmHits int
	minInterval time.Duration
	clock       Clock

	streak   int
	lastFire time.Time
	fired    bool
}

// NewGate returns a gate. confirmHits is raised to 1 and a negative or NaN
// interval becomes 0. A nil clock means SystemClock.
func NewGate(confirmHits int, minIntervalSeconds float64, clock Clock) *Gate {
	if confirmHits < 1 {
		confirmHits = 1
	}
	if math.IsNaN(minIntervalSeconds) || minIntervalSeconds < 0 {
		minIntervalSeconds = 0
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Gate{
		confirmHits: confirmHits,
		minInterval: time.Duration(minIntervalSeconds * float64(time.Second)),
		clock:       clock,
	}
}

// Observe records one frame's hit status and reports whether a trigger fires.
// A miss always clears the streak. When enough hits accumulate but the
// interval has not elapsed, the streak is kept so the next hit can fire.
func (g *Gate) Observe(hit bool) bool {
	if !hit {
		g.streak = 0
		return false
	}
	g.streak++
	if g.streak < g.confirmHits {
		return false
	}
	now := g.clock.Now()
	if g.fired && now.Sub(g.lastFire) < g.minInterval {
		return false
	}
	g.streak = 0
	g.lastFire = now
	g.fired = true
	return true
}

// Streak returns the current count of consecutive hits.
func (g *Gate) Streak() int { return g.streak }

// ConfirmHits returns the effective confirmation count.
func (g *Gate) ConfirmHits() int { return g.confirmHits }

// MinInterval returns the effective minimum interval between fires.
func (g *Gate) MinInterval() time.Duration { return g.minInterval }

// LastFire returns the time of the last fire and whether the gate has fired.
func (g *Gate) LastFire() (time.Time, bool) { return g.lastFire, g.fired }

// State reports the debounce phase.
func (g *Gate) State() State {
	switch {
	case g.streak == 0:
		return StateIdle
	case g.streak < g.confirmHits:
		return StateAccumulating
	default:
		return StateArmed
	}
}
