package action

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/game-watcher-go/domain/trigger"
	"github.com/soocke/game-watcher-go/domain/vision"
)

// ErrRateLimited is returned when a trigger is suppressed by the per-minute limit.
var ErrRateLimited = errors.New("action: trigger rate limit reached")

// Trigger is a fired decision handed to an executor.
type Trigger struct {
	Target    image.Point // screen coordinates
	Candidate vision.Candidate
	At        time.Time
}

// Executor performs (or pretends to perform) the action for a trigger.
type Executor interface {
	Execute(Trigger) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(Trigger) error

func (f ExecutorFunc) Execute(t Trigger) error { return f(t) }

// DryRun logs triggers instead of executing them.
type DryRun struct {
	Logger *slog.Logger
}

func (d DryRun) Execute(t Trigger) error {
	if d.Logger != nil {
		d.Logger.Warn("dry-run: would trigger",
			"x", t.Target.X, "y", t.Target.Y,
			"template", t.Candidate.Template,
			"score", t.Candidate.Score)
	}
	return nil
}

// Unwired is used when dry-run is disabled but no input backend is available.
type Unwired struct {
	Logger *slog.Logger
}

func (u Unwired) Execute(t Trigger) error {
	if u.Logger != nil {
		u.Logger.Error("trigger fired but no action executor is wired",
			"x", t.Target.X, "y", t.Target.Y, "template", t.Candidate.Template)
	}
	return nil
}

// RateLimited forwards at most perMinute triggers in any sliding
// one-minute window. perMinute <= 0 disables the limit.
type RateLimited struct {
	next      Executor
	perMinute int
	clock     trigger.Clock

	mu     sync.Mutex
	recent []time.Time
}

var _ Executor = (*RateLimited)(nil)

// RateLimit wraps next with a sliding-window limit. A nil clock means the system clock.
func RateLimit(next Executor, perMinute int, clock trigger.Clock) *RateLimited {
	if clock == nil {
		clock = trigger.SystemClock{}
	}
	return &RateLimited{next: next, perMinute: perMinute, clock: clock}
}

func (r *RateLimited) Execute(t Trigger) error {
	if r.perMinute <= 0 {
		return r.next.Execute(t)
	}
	r.mu.Lock()
	now := r.clock.Now()
	kept := r.recent[:0]
	for _, ts := range r.recent {
		if now.Sub(ts) < time.Minute {
			kept = append(kept, ts)
		}
	}
	r.recent = kept
	if len(r.recent) >= r.perMinute {
		r.mu.Unlock()
		return ErrRateLimited
	}
	r.recent = append(r.recent, now)
	r.mu.Unlock()
	return r.next.Execute(t)
}
