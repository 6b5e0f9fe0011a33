package artifact

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

type job struct {
	img    gocv.Mat
	prefix string
}

// Async hands frames to a background writer. Save never blocks: when the
// queue is full the frame is released and ErrQueueFull is returned.
type Async struct {
	next   Sink
	logger *slog.Logger
	jobs   chan job
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
}

var _ Sink = (*Async)(nil)

// NewAsync starts a writer goroutine in front of next.
func NewAsync(next Sink, queue int, logger *slog.Logger) *Async {
	if queue < 1 {
		queue = 1
	}
	a := &Async{next: next, logger: logger, jobs: make(chan job, queue)}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *Async) Save(img gocv.Mat, prefix string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		img.Close()
		return "", ErrClosed
	}
	select {
	case a.jobs <- job{img: img, prefix: prefix}:
		return "", nil
	default:
		img.Close()
		a.dropped.Add(1)
		return "", ErrQueueFull
	}
}

func (a *Async) loop() {
	defer a.wg.Done()
	for j := range a.jobs {
		path, err := a.next.Save(j.img, j.prefix)
		switch {
		case errors.Is(err, ErrDuplicate):
			if a.logger != nil {
				a.logger.Debug("artifact skipped", "prefix", j.prefix, "reason", err)
			}
		case err != nil:
			if a.logger != nil {
				a.logger.Warn("artifact write failed", "prefix", j.prefix, "error", err)
			}
		default:
			a.written.Add(1)
			if a.logger != nil {
				a.logger.Info("artifact saved", "path", path)
			}
		}
	}
}

// Stats returns the number of written and dropped frames.
func (a *Async) Stats() (written, dropped uint64) {
	return a.written.Load(), a.dropped.Load()
}

// Close stops accepting frames and waits for queued writes to finish.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.jobs)
	a.mu.Unlock()
	a.wg.Wait()
}
