package app

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/soocke/game-watcher-go/config"
	"github.com/soocke/game-watcher-go/domain/action"
	"github.com/soocke/game-watcher-go/domain/artifact"
	"github.com/soocke/game-watcher-go/domain/capture"
	"github.com/soocke/game-watcher-go/domain/pipeline"
	"github.com/soocke/game-watcher-go/domain/trigger"
	"github.com/soocke/game-watcher-go/domain/vision"
	"github.com/soocke/game-watcher-go/domain/window"
)

var (
	// ErrCaptureFailed marks a command that could not obtain a frame.
	ErrCaptureFailed = errors.New("capture failed")
)

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, window.ErrNotFound):
		return 2
	case errors.Is(err, ErrCaptureFailed):
		return 3
	default:
		return 1
	}
}

// Container assembles the services for the watch loop.
type Container struct {
	Config   *config.Config
	Logger   *slog.Logger
	Finder   window.Finder
	Capture  *capture.Metered
	Pack     *vision.Pack
	Matcher  *vision.Matcher
	Gate     *trigger.Gate
	Sink     *artifact.Async
	Executor action.Executor
	Pipeline *pipeline.Pipeline
	Title    *regexp.Regexp
}

// BuildContainer constructs all components. It loads the active template pack
// and fails on any fatal configuration problem.
func BuildContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}
	title, err := cfg.TitlePattern()
	if err != nil {
		return nil, fmt.Errorf("window title pattern: %w", err)
	}
	c.Title = title

	finder, err := window.NewFinder()
	if err != nil {
		return nil, fmt.Errorf("window service: %w", err)
	}
	c.Finder = finder

	backend, err := capture.NewBackend(cfg.Capture.Backend)
	if err != nil {
		return nil, fmt.Errorf("capture backend: %w", err)
	}
	c.Capture = capture.NewMetered(backend, logger)

	c.Pack, err = vision.LoadPack(cfg.PackDir(), cfg.EdgeParams())
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Matcher, err = newMatcher(cfg, c.Pack)
	if err != nil {
		c.Close()
		return nil, err
	}
	logger.Info("templates loaded", "pack", c.Pack.Dir, "templates", c.Pack.Names(),
		"method", c.Matcher.Method().String(), "scales", c.Matcher.Scales(), "mode", cfg.Mode().String())

	c.Gate = trigger.NewGate(cfg.Vision.Match.ConfirmHits, cfg.Vision.Match.MinTriggerIntervalS, nil)
	c.Sink = newSink(cfg, logger)
	c.Executor = newExecutor(cfg, logger)
	c.Pipeline = pipeline.New(c.Matcher, c.Gate, c.Executor, c.Sink, pipelineOptions(cfg), logger)
	return c, nil
}

// Close releases matcher, pack, sink and capture resources.
func (c *Container) Close() {
	if c.Sink != nil {
		c.Sink.Close()
	}
	if c.Matcher != nil {
		c.Matcher.Close()
	}
	if c.Pack != nil {
		c.Pack.Close()
	}
	if c.Capture != nil {
		_ = c.Capture.Close()
	}
}

func newMatcher(cfg *config.Config, pack *vision.Pack) (*vision.Matcher, error) {
	m := cfg.Vision.Match
	return vision.NewMatcher(pack.Templates, m.Method, m.Scales, vision.MatcherOptions{Parallelism: m.Parallelism})
}

func newFileSink(cfg *config.Config) *artifact.FileSink {
	return artifact.NewFileSink(cfg.Debug.OutDir, artifact.FileOptions{
		MaxWidth:       cfg.Debug.MaxWidth,
		DedupeDistance: cfg.Debug.DedupeDistance,
	})
}

func newSink(cfg *config.Config, logger *slog.Logger) *artifact.Async {
	return artifact.NewAsync(newFileSink(cfg), cfg.Debug.QueueSize, logger)
}

func newExecutor(cfg *config.Config, logger *slog.Logger) action.Executor {
	var exec action.Executor = action.Unwired{Logger: logger}
	if cfg.App.DryRun {
		exec = action.DryRun{Logger: logger}
	}
	return action.RateLimit(exec, cfg.Safety.MaxTriggersPerMinute, nil)
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Mode:           cfg.Mode(),
		Edge:           cfg.EdgeParams(),
		Threshold:      cfg.Vision.Match.Threshold,
		NearMiss:       cfg.Vision.Match.NearMiss,
		SaveHits:       cfg.Debug.SaveMatchFrames,
		SaveNearMisses: cfg.Debug.SaveNearMissFrames,
	}
}
