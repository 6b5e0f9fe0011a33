package debug

// Periodic runtime statistics, enabled by debug.runtime_stats. Logs goroutine
// count, Go heap and stack usage, and the process working set where the
// platform exposes it.

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"
)

// Snapshot is one sample of runtime statistics.
type Snapshot struct {
	Goroutines uint64
	HeapAlloc  uint64
	HeapInuse  uint64
	StackInuse uint64
	NumGC      uint32
	RSS        uint64 // 0 when unavailable
}

// Sample reads the current runtime statistics.
func Sample() (Snapshot, error) {
	samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
	metrics.Read(samples)
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	rss, err := residentSetSize()
	return Snapshot{
		Goroutines: samples[0].Value.Uint64(),
		HeapAlloc:  ms.HeapAlloc,
		HeapInuse:  ms.HeapInuse,
		StackInuse: ms.StackInuse,
		NumGC:      ms.NumGC,
		RSS:        rss,
	}, err
}

// StartRuntimeLogger logs a Snapshot every interval until ctx is done.
func StartRuntimeLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		var rssErrLogged bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			s, err := Sample()
			if err != nil && !rssErrLogged {
				logger.Warn("runtime stats: rss unavailable", "error", err)
				rssErrLogged = true
			}
			logger.Info("runtime-stats",
				slog.Uint64("goroutines", s.Goroutines),
				slog.Uint64("heap_alloc", s.HeapAlloc),
				slog.Uint64("heap_inuse", s.HeapInuse),
				slog.Uint64("stack_inuse", s.StackInuse),
				slog.Uint64("num_gc", uint64(s.NumGC)),
				slog.Uint64("rss", s.RSS),
			)
		}
	}()
}
