package trigger

import "time"

// Clock supplies the current time. Readings from SystemClock carry Go's
// monotonic clock, so elapsed time is immune to wall-clock adjustments.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock advanced explicitly. It is safe for use from a
// single goroutine only.
type ManualClock struct {
	t time.Time
}

// NewManualClock returns a clock starting at start.
func NewManualClock(start time.Time) *ManualClock { return &ManualClock{t: start} }

func (c *ManualClock) Now() time.Time { return c.t }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) { c.t = t }
