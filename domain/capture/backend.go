package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

var (
	// ErrUnknownBackend is returned by NewBackend for an unsupported name.
	ErrUnknownBackend = errors.New("capture: unknown backend")
	// ErrEmptyRegion is returned when asked to grab a region without area.
	ErrEmptyRegion = errors.New("capture: empty region")
)

// Backend grabs a screen region as a freshly allocated RGBA image.
type Backend interface {
	Grab(r Region) (*image.RGBA, error)
	Close() error
}

// NewBackend returns the backend registered under name: "screenshot"
// (portable) or "gdi" (Windows only).
func NewBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "screenshot", "mss":
		return ScreenshotBackend{}, nil
	case "gdi", "dxcam":
		return newGDIBackend()
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

// Stats summarises capture behaviour for instrumentation.
type Stats struct {
	Captures    uint64
	Failures    uint64
	AvgCapture  time.Duration
	LastCapture time.Time
}

// Metered wraps a Backend and records capture timings.
type Metered struct {
	Backend
	logger   *slog.Logger
	captures atomic.Uint64
	failures atomic.Uint64
	nanos    atomic.Uint64
	last     atomic.Int64
}

// NewMetered wraps b.
func NewMetered(b Backend, logger *slog.Logger) *Metered {
	return &Metered{Backend: b, logger: logger}
}

func (m *Metered) Grab(r Region) (*image.RGBA, error) {
	start := time.Now()
	img, err := m.Backend.Grab(r)
	if err != nil {
		m.failures.Add(1)
		if m.logger != nil {
			m.logger.Error("capture failed", "region", r.String(), "error", err)
		}
		return nil, err
	}
	m.nanos.Add(uint64(time.Since(start)))
	m.captures.Add(1)
	m.last.Store(time.Now().UnixNano())
	return img, nil
}

// Stats returns a snapshot of the counters.
func (m *Metered) Stats() Stats {
	captures := m.captures.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(m.nanos.Load() / captures)
	}
	var last time.Time
	if ns := m.last.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return Stats{Captures: captures, Failures: m.failures.Load(), AvgCapture: avg, LastCapture: last}
}
