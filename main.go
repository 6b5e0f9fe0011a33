package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/game-watcher-go/app"
	"github.com/soocke/game-watcher-go/config"
)

func main() {
	var (
		cfgPath       = flag.String("config", "config.yaml", "path to YAML config")
		dryRun        = flag.Bool("dry-run", false, "force dry-run (log triggers instead of executing)")
		logDir        = flag.String("log-dir", "logs", "directory for the rotating log file")
		logLevel      = flag.String("log-level", "info", "console log level: debug, info, warn, error")
		diagWindow    = flag.Bool("diag-window", false, "locate the target window and print its client rect")
		diagCapture   = flag.Bool("diag-capture", false, "capture frames from the target window into the debug directory")
		matchPic      = flag.String("match-pic", "", "match all template packs against a static image")
		focusWait     = flag.Duration("focus-wait", 0, "with -diag-window, wait this long for the window to gain focus")
		frames        = flag.Int("frames", 3, "with -diag-capture, number of frames to capture")
		frameInterval = flag.Duration("frame-interval", 500*time.Millisecond, "with -diag-capture, delay between frames")
	)
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *logLevel, err)
		os.Exit(2)
	}
	logger, closeLog, err := NewLogger(level, *logDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "path", *cfgPath, "error", err)
		closeLog()
		os.Exit(1)
	}
	if *dryRun {
		cfg.App.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *diagWindow:
		err = app.DiagWindow(ctx, cfg, logger, *focusWait)
	case *diagCapture:
		err = app.DiagCapture(ctx, cfg, logger, *frames, *frameInterval)
	case *matchPic != "":
		_, err = app.MatchPic(cfg, logger, *matchPic)
	default:
		err = app.Run(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("exit", "error", err)
		stop()
		closeLog()
		os.Exit(app.ExitCode(err))
	}
}
