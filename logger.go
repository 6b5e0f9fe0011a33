package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "game_watcher.log"

// teeHandler sends each record to the console and to the rotating log file.
type teeHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.file.Enabled(ctx, r.Level) {
		if err := h.file.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	if h.console.Enabled(ctx, r.Level) {
		return h.console.Handle(ctx, r)
	}
	return nil
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{console: h.console.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{console: h.console.WithGroup(name), file: h.file.WithGroup(name)}
}

// NewLogger returns a logger writing text to stderr at level and JSON at
// debug level to a rotating file in logDir (2 MB, 5 backups). The returned
// func closes the file.
func NewLogger(level slog.Leveler, logDir string) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFileName),
		MaxSize:    2,
		MaxBackups: 5,
		LocalTime:  true,
	}
	h := &teeHandler{
		console: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		file:    slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	logger := slog.New(h)
	cleanup := func() {
		if err := lj.Close(); err != nil {
			logger.Error("close log file", "error", err)
		}
	}
	return logger, cleanup, nil
}
