package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soocke/game-watcher-go/domain/vision"
)

// Config holds runtime configuration. It is loaded from a YAML file and may be
// overridden by command-line flags.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Window  WindowConfig  `yaml:"window"`
	Capture CaptureConfig `yaml:"capture"`
	Vision  VisionConfig  `yaml:"vision"`
	Safety  SafetyConfig  `yaml:"safety"`
	Debug   DebugConfig   `yaml:"debug"`
}

type AppConfig struct {
	DryRun          bool    `yaml:"dry_run"`
	ScanIntervalSec float64 `yaml:"scan_interval_sec"`
	// CooldownSec pauses scanning after a trigger fires.
	CooldownSec float64 `yaml:"cooldown_sec"`
}

type WindowConfig struct {
	TitleRegex        string `yaml:"title_regex"`
	RequireForeground bool   `yaml:"require_foreground"`
}

type CaptureConfig struct {
	Backend           string `yaml:"backend"`
	CaptureWindowOnly bool   `yaml:"capture_window_only"`
}

type VisionConfig struct {
	TemplatesDir string      `yaml:"templates_dir"`
	ActivePack   string      `yaml:"active_pack"`
	Mode         string      `yaml:"mode"`
	Canny        CannyConfig `yaml:"canny"`
	Match        MatchConfig `yaml:"match"`
}

type CannyConfig struct {
	Low       float64 `yaml:"low"`
	High      float64 `yaml:"high"`
	BlurKsize int     `yaml:"blur_ksize"`
}

type MatchConfig struct {
	Method              string    `yaml:"method"`
	Threshold           float64   `yaml:"threshold"`
	NearMiss            float64   `yaml:"near_miss"`
	Scales              []float64 `yaml:"scales"`
	ConfirmHits         int       `yaml:"confirm_hits"`
	MinTriggerIntervalS float64   `yaml:"min_trigger_interval_s"`
	Parallelism         int       `yaml:"parallelism"`
}

type SafetyConfig struct {
	MaxTriggersPerMinute int `yaml:"max_triggers_per_minute"`
}

type DebugConfig struct {
	OutDir             string  `yaml:"out_dir"`
	SaveMatchFrames    bool    `yaml:"save_match_frames"`
	SaveNearMissFrames bool    `yaml:"save_near_miss_frames"`
	MaxWidth           int     `yaml:"max_width"`
	DedupeDistance     int     `yaml:"dedupe_distance"`
	QueueSize          int     `yaml:"queue_size"`
	RuntimeStats       bool    `yaml:"runtime_stats"`
	StatsIntervalSec   float64 `yaml:"stats_interval_sec"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		App:     AppConfig{DryRun: true, ScanIntervalSec: 3.5, CooldownSec: 2.0},
		Window:  WindowConfig{TitleRegex: ".*", RequireForeground: true},
		Capture: CaptureConfig{Backend: "screenshot", CaptureWindowOnly: true},
		Vision: VisionConfig{
			TemplatesDir: "templates",
			ActivePack:   "default",
			Mode:         "edges",
			Canny:        CannyConfig{Low: 60, High: 160, BlurKsize: 3},
			Match: MatchConfig{
				Method:              "TM_CCOEFF_NORMED",
				Threshold:           0.5,
				NearMiss:            0.4,
				Scales:              []float64{1.0},
				ConfirmHits:         1,
				MinTriggerIntervalS: 10.0,
				Parallelism:         1,
			},
		},
		Safety: SafetyConfig{MaxTriggersPerMinute: 6},
		Debug: DebugConfig{
			OutDir:             "debug_out",
			SaveMatchFrames:    true,
			SaveNearMissFrames: false,
			MaxWidth:           1280,
			DedupeDistance:     0,
			QueueSize:          8,
			StatsIntervalSec:   30,
		},
	}
}

// Validate clamps values to safe ranges. It returns an error only for values
// that cannot be repaired: an invalid title regex or match mode.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.App.ScanIntervalSec <= 0 {
		c.App.ScanIntervalSec = d.App.ScanIntervalSec
	}
	if c.App.CooldownSec < 0 {
		c.App.CooldownSec = 0
	}
	if c.Window.TitleRegex == "" {
		c.Window.TitleRegex = d.Window.TitleRegex
	}
	if c.Capture.Backend == "" {
		c.Capture.Backend = d.Capture.Backend
	}
	if c.Vision.TemplatesDir == "" {
		c.Vision.TemplatesDir = d.Vision.TemplatesDir
	}
	if c.Vision.ActivePack == "" {
		c.Vision.ActivePack = d.Vision.ActivePack
	}
	if c.Vision.Mode == "" {
		c.Vision.Mode = d.Vision.Mode
	}
	if c.Vision.Canny.Low < 0 {
		c.Vision.Canny.Low = d.Vision.Canny.Low
	}
	if c.Vision.Canny.High < c.Vision.Canny.Low {
		c.Vision.Canny.High = c.Vision.Canny.Low
	}
	m := &c.Vision.Match
	if m.Method == "" {
		m.Method = d.Vision.Match.Method
	}
	if m.NearMiss > m.Threshold {
		m.NearMiss = m.Threshold
	}
	if m.ConfirmHits < 1 {
		m.ConfirmHits = 1
	}
	if m.MinTriggerIntervalS < 0 {
		m.MinTriggerIntervalS = 0
	}
	if m.Parallelism < 1 {
		m.Parallelism = 1
	}
	if c.Safety.MaxTriggersPerMinute < 0 {
		c.Safety.MaxTriggersPerMinute = 0
	}
	if c.Debug.OutDir == "" {
		c.Debug.OutDir = d.Debug.OutDir
	}
	if c.Debug.MaxWidth < 0 {
		c.Debug.MaxWidth = 0
	}
	if c.Debug.DedupeDistance < 0 {
		c.Debug.DedupeDistance = 0
	}
	if c.Debug.QueueSize < 1 {
		c.Debug.QueueSize = d.Debug.QueueSize
	}
	if c.Debug.StatsIntervalSec <= 0 {
		c.Debug.StatsIntervalSec = d.Debug.StatsIntervalSec
	}

	var errs []error
	if _, err := regexp.Compile(c.Window.TitleRegex); err != nil {
		errs = append(errs, fmt.Errorf("config: window.title_regex: %w", err))
	}
	if _, err := vision.ParseMode(c.Vision.Mode); err != nil {
		errs = append(errs, fmt.Errorf("config: vision.mode: %w", err))
	}
	return errors.Join(errs...)
}

// Load reads configuration from a YAML file. A missing file yields
// DefaultConfig(). Keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to path in YAML format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// PackDir is the directory of the active template pack.
func (c *Config) PackDir() string {
	return filepath.Join(c.Vision.TemplatesDir, c.Vision.ActivePack)
}

// EdgeParams returns the edge extraction parameters.
func (c *Config) EdgeParams() vision.EdgeParams {
	return vision.EdgeParams{Low: c.Vision.Canny.Low, High: c.Vision.Canny.High, BlurKernel: c.Vision.Canny.BlurKsize}
}

// Mode returns the configured match mode, defaulting to edges.
func (c *Config) Mode() vision.Mode {
	m, _ := vision.ParseMode(c.Vision.Mode)
	return m
}

// TitlePattern compiles the window title regex.
func (c *Config) TitlePattern() (*regexp.Regexp, error) {
	return regexp.Compile(c.Window.TitleRegex)
}

func (c *Config) ScanInterval() time.Duration { return seconds(c.App.ScanIntervalSec) }
func (c *Config) Cooldown() time.Duration { return seconds(c.App.CooldownSec) }
func (c *Config) StatsInterval() time.Duration {
	return seconds(c.Debug.StatsIntervalSec)
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
