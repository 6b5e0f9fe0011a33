package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/soocke/game-watcher-go/config"
	"github.com/soocke/game-watcher-go/domain/artifact"
	"github.com/soocke/game-watcher-go/domain/capture"
	"github.com/soocke/game-watcher-go/domain/pipeline"
	"github.com/soocke/game-watcher-go/domain/vision"
	"github.com/soocke/game-watcher-go/domain/window"
)

// DiagWindow locates the target window and logs its client rectangle and focus.
func DiagWindow(ctx context.Context, cfg *config.Config, logger *slog.Logger, focusWait time.Duration) error {
	finder, err := window.NewFinder()
	if err != nil {
		return fmt.Errorf("window service: %w", err)
	}
	return diagWindow(ctx, cfg, logger, finder, focusWait)
}

func diagWindow(ctx context.Context, cfg *config.Config, logger *slog.Logger, finder window.Finder, focusWait time.Duration) error {
	re, err := cfg.TitlePattern()
	if err != nil {
		return err
	}
	info, err := window.FindFirst(finder, re)
	if err != nil {
		return err
	}
	logger.Info("window found", "title", info.Title, "handle", fmt.Sprintf("%#x", uintptr(info.Handle)),
		"left", info.Client.Left, "top", info.Client.Top, "width", info.Client.Width, "height", info.Client.Height)
	focused := finder.IsForeground(info.Handle)
	if !focused && focusWait > 0 {
		logger.Info("waiting for focus", "timeout", focusWait)
		focused = window.WaitForeground(ctx, finder, info.Handle, focusWait, 0)
	}
	logger.Info("foreground", "title", info.Title, "foreground", focused)
	return nil
}

// DiagCapture grabs frames from the target window and stores them as artifacts.
func DiagCapture(ctx context.Context, cfg *config.Config, logger *slog.Logger, frames int, interval time.Duration) error {
	finder, err := window.NewFinder()
	if err != nil {
		return fmt.Errorf("window service: %w", err)
	}
	backend, err := capture.NewBackend(cfg.Capture.Backend)
	if err != nil {
		return err
	}
	defer backend.Close()
	return diagCapture(ctx, cfg, logger, finder, backend, newFileSink(cfg), frames, interval)
}

func diagCapture(ctx context.Context, cfg *config.Config, logger *slog.Logger, finder window.Finder, backend capture.Backend, sink artifact.Sink, frames int, interval time.Duration) error {
	re, err := cfg.TitlePattern()
	if err != nil {
		return err
	}
	info, err := window.FindFirst(finder, re)
	if err != nil {
		return err
	}
	for i := range max(frames, 1) {
		if i > 0 && !sleep(ctx, interval) {
			return ctx.Err()
		}
		img, err := backend.Grab(info.Client)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		}
		mat, err := vision.FrameFromImage(img)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		}
		path, err := sink.Save(mat, "capture")
		if err != nil {
			logger.Warn("capture not saved", "frame", i, "error", err)
			continue
		}
		logger.Info("frame captured", "frame", i, "path", path, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	}
	return nil
}

// MatchPic matches every template pack under the templates root against a
// static image and saves an annotated copy for hits and near-misses. No
// trigger gate is involved.
func MatchPic(cfg *config.Config, logger *slog.Logger, path string) (pipeline.Outcome, error) {
	frame := gocv.IMRead(path, gocv.IMReadColor)
	defer frame.Close()
	if frame.Empty() {
		return pipeline.Outcome{}, fmt.Errorf("%w: cannot read %s", ErrCaptureFailed, path)
	}
	pack, skipped, err := vision.LoadPacks(cfg.Vision.TemplatesDir, cfg.EdgeParams())
	for _, e := range skipped {
		logger.Warn("pack skipped", "error", e)
	}
	if err != nil {
		return pipeline.Outcome{}, err
	}
	defer pack.Close()
	m, err := newMatcher(cfg, pack)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	defer m.Close()
	return matchStatic(cfg, logger, m, newFileSink(cfg), frame)
}

func matchStatic(cfg *config.Config, logger *slog.Logger, m pipeline.BestMatcher, sink artifact.Sink, frame gocv.Mat) (pipeline.Outcome, error) {
	intensity, err := vision.ToIntensity(frame)
	if err != nil {
		intensity.Close()
		return pipeline.Outcome{}, err
	}
	defer intensity.Close()
	edges := vision.ToEdges(intensity, cfg.EdgeParams())
	defer edges.Close()

	cand, ok := m.MatchBest(intensity, edges, cfg.Mode())
	if !ok {
		logger.Info("no eligible template for image", "cols", frame.Cols(), "rows", frame.Rows())
		return pipeline.Outcome{Class: pipeline.ClassNone}, nil
	}
	out := pipeline.Outcome{
		Candidate: cand,
		Found:     true,
		Class:     pipeline.Classify(cand.Score, cfg.Vision.Match.Threshold, cfg.Vision.Match.NearMiss),
		Target:    cand.Center,
	}
	logger.Info("static match", "class", out.Class.String(), "template", cand.Template, "score", cand.Score,
		"scale", cand.Scale, "x", cand.Center.X, "y", cand.Center.Y)

	var kind, prefix string
	switch out.Class {
	case pipeline.ClassHit:
		kind, prefix = "HIT", "static_hit"
	case pipeline.ClassNear:
		kind, prefix = "NEAR", "static_near"
	default:
		return out, nil
	}
	if p, err := sink.Save(vision.Annotate(frame, cand, vision.Label(kind, cand)), prefix); err != nil {
		logger.Warn("annotated image not saved", "error", err)
	} else {
		logger.Info("annotated image saved", "path", p)
	}
	return out, nil
}
