package window

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/soocke/game-watcher-go/domain/capture"
)

// ErrNotFound is returned when no window title matches.
var ErrNotFound = errors.New("window: no matching window")

// Handle is an opaque OS window handle.
type Handle uintptr

// Info describes a window and its client area in screen coordinates.
type Info struct {
	Handle Handle
	Title  string
	Client capture.Region
}

// Finder is the OS windowing service.
type Finder interface {
	// FindByTitle returns visible, non-minimized windows whose title matches.
	FindByTitle(re *regexp.Regexp) ([]Handle, error)
	Info(h Handle) (Info, error)
	IsForeground(h Handle) bool
}

// FindFirst returns the first window matching pattern.
func FindFirst(f Finder, re *regexp.Regexp) (Info, error) {
	handles, err := f.FindByTitle(re)
	if err != nil {
		return Info{}, err
	}
	if len(handles) == 0 {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, re)
	}
	return f.Info(handles[0])
}

// WaitForeground polls until h is the foreground window, the timeout passes or
// ctx ends. It reports whether the window became foreground.
func WaitForeground(ctx context.Context, f Finder, h Handle, timeout, poll time.Duration) bool {
	if f.IsForeground(h) {
		return true
	}
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return f.IsForeground(h)
		case <-ticker.C:
			if f.IsForeground(h) {
				return true
			}
		}
	}
}

// FocusTracker reports foreground transitions so callers log once per change.
type FocusTracker struct {
	known   bool
	focused bool
}

// Update records the current focus state and reports whether it changed.
func (t *FocusTracker) Update(focused bool) bool {
	changed := !t.known || focused != t.focused
	t.known = true
	t.focused = focused
	return changed
}
