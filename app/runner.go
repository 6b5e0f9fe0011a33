package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/soocke/game-watcher-go/config"
	"github.com/soocke/game-watcher-go/debug"
	"github.com/soocke/game-watcher-go/domain/capture"
	"github.com/soocke/game-watcher-go/domain/pipeline"
	"github.com/soocke/game-watcher-go/domain/vision"
	"github.com/soocke/game-watcher-go/domain/window"
)

// Runner drives the watch loop: locate the window, capture its client area and
// feed the frame to the pipeline, once per scan interval.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	finder   window.Finder
	backend  capture.Backend
	pipeline *pipeline.Pipeline
	title    *regexp.Regexp
	screen   func() (capture.Region, error)

	focus    window.FocusTracker
	notFound bool
}

// NewRunner wires a runner from its collaborators.
func NewRunner(cfg *config.Config, logger *slog.Logger, finder window.Finder, backend capture.Backend, p *pipeline.Pipeline, title *regexp.Regexp) *Runner {
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		finder:   finder,
		backend:  backend,
		pipeline: p,
		title:    title,
		screen:   capture.ScreenRegion,
	}
}

// Run loops until ctx is cancelled. Only a malformed frame ends it early.
func (r *Runner) Run(ctx context.Context) error {
	scan := time.NewTicker(r.cfg.ScanInterval())
	defer scan.Stop()
	stats := time.NewTicker(r.cfg.StatsInterval())
	defer stats.Stop()

	r.logger.Info("watch loop started", "interval", r.cfg.ScanInterval(), "dry_run", r.cfg.App.DryRun)
	for {
		out, err := r.Step()
		if err != nil {
			return err
		}
		if out.Triggered && r.cfg.Cooldown() > 0 {
			if !sleep(ctx, r.cfg.Cooldown()) {
				break
			}
		}
		if !waitScan(ctx, scan.C, stats.C, r.logStats) {
			break
		}
	}
	r.logger.Info("watch loop stopped", "stats", r.pipeline.Stats())
	return nil
}

func (r *Runner) logStats() {
	r.logger.Info("pipeline stats", "stats", r.pipeline.Stats())
}

// waitScan blocks until the next scan tick, calling onStats for every stats
// tick in between. It returns false once ctx ends.
func waitScan(ctx context.Context, scan, stats <-chan time.Time, onStats func()) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-stats:
			onStats()
		case <-scan:
			return true
		}
	}
}

// Step processes a single frame. Missing windows, lost focus and capture
// failures are logged and skipped without touching the gate.
func (r *Runner) Step() (pipeline.Outcome, error) {
	region, ok := r.locate()
	if !ok {
		return pipeline.Outcome{}, nil
	}
	img, err := r.backend.Grab(region)
	if err != nil {
		r.logger.Warn("frame capture failed", "region", region.String(), "error", err)
		return pipeline.Outcome{}, nil
	}
	frame, err := vision.FrameFromImage(img)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	defer frame.Close()
	return r.pipeline.ProcessFrame(frame, region.Origin())
}

func (r *Runner) locate() (capture.Region, bool) {
	info, err := window.FindFirst(r.finder, r.title)
	if err != nil {
		if !r.notFound {
			r.logger.Warn("target window not found", "pattern", r.title.String(), "error", err)
		}
		r.notFound = true
		return capture.Region{}, false
	}
	if r.notFound {
		r.logger.Info("target window found", "title", info.Title, "client", info.Client.String())
		r.notFound = false
	}
	if r.cfg.Window.RequireForeground {
		focused := r.finder.IsForeground(info.Handle)
		if r.focus.Update(focused) {
			r.logger.Info("focus changed", "title", info.Title, "foreground", focused)
		}
		if !focused {
			return capture.Region{}, false
		}
	}
	if r.cfg.Capture.CaptureWindowOnly {
		return info.Client, !info.Client.Empty()
	}
	screen, err := r.screen()
	if err != nil {
		r.logger.Warn("screen bounds unavailable", "error", err)
		return capture.Region{}, false
	}
	return screen, true
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Run builds the container and runs the watch loop until ctx ends.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	c, err := BuildContainer(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	if cfg.Debug.RuntimeStats {
		debug.StartRuntimeLogger(ctx, cfg.StatsInterval(), logger)
	}
	err = NewRunner(cfg, logger, c.Finder, c.Capture, c.Pipeline, c.Title).Run(ctx)
	if written, dropped := c.Sink.Stats(); written+dropped > 0 {
		logger.Info("debug artifacts", "written", written, "dropped", dropped)
	}
	if errors.Is(err, vision.ErrInvalidImageShape) {
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	return err
}
