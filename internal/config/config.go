// Package config loads the detector configuration from a JSON file, an
// optional .env file and DESKMODE_* environment variables, in that order of
// increasing precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ironsheep/desk-mode-mcp/internal/pipeline"
	"github.com/ironsheep/desk-mode-mcp/internal/segment"
)

// Environment variables.
const (
	EnvConfig        = "DESKMODE_CONFIG"
	EnvLogLevel      = "DESKMODE_LOG_LEVEL"
	EnvFramesDir     = "DESKMODE_FRAMES_DIR"
	EnvFrameInterval = "DESKMODE_FRAME_INTERVAL"
	EnvSensorPath    = "DESKMODE_SENSOR_PATH"
	EnvWSAddr        = "DESKMODE_WS_ADDR"
	EnvMMPerPixel    = "DESKMODE_MM_PER_PIXEL"
	EnvROIScale      = "DESKMODE_ROI_SCALE"
	EnvMinArea       = "DESKMODE_MIN_AREA"
)

// Config holds runtime configuration for the detector and its adapters.
type Config struct {
	LogLevel string `json:"log_level"`

	// Frame replay
	FramesDir     string `json:"frames_dir"`
	Loop          bool   `json:"loop"`
	FrameInterval string `json:"frame_interval"`

	// SensorPath is a file or tty carrying [TEMP] blocks. Empty disables
	// sensor input.
	SensorPath string `json:"sensor_path"`

	// WSAddr is the listen address of the websocket event feed. Empty
	// disables it.
	WSAddr string `json:"ws_addr"`

	Pipeline pipeline.Options `json:"pipeline"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		FrameInterval: "500ms",
		Pipeline:      pipeline.DefaultOptions(),
	}
}

// Interval returns the parsed frame interval.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.FrameInterval)
	if err != nil || d < 0 {
		return 500 * time.Millisecond
	}
	return d
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Validate clamps values to safe ranges. It fails only when the color table
// cannot be used.
func (c *Config) Validate() error {
	def := DefaultConfig()

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	default:
		c.LogLevel = def.LogLevel
	}
	if d, err := time.ParseDuration(c.FrameInterval); err != nil || d < 0 {
		c.FrameInterval = def.FrameInterval
	}

	p := &c.Pipeline
	if p.ROIScale <= 0 || p.ROIScale > 1 {
		p.ROIScale = def.Pipeline.ROIScale
	}
	if p.MinArea < 0 {
		p.MinArea = def.Pipeline.MinArea
	}
	if p.Gamma <= 0 {
		p.Gamma = def.Pipeline.Gamma
	}
	if p.CLAHEClipLimit < 0 {
		p.CLAHEClipLimit = def.Pipeline.CLAHEClipLimit
	}
	if p.CLAHETiles <= 0 || p.CLAHETiles > 64 {
		p.CLAHETiles = def.Pipeline.CLAHETiles
	}
	if p.MMPerPixel <= 0 {
		p.MMPerPixel = def.Pipeline.MMPerPixel
	}
	if p.WindowSize <= 0 {
		p.WindowSize = def.Pipeline.WindowSize
	}
	if p.Required <= 0 || p.Required > p.WindowSize {
		p.Required = min(def.Pipeline.Required, p.WindowSize)
	}
	if len(p.ColorRanges) == 0 {
		p.ColorRanges = def.Pipeline.ColorRanges
	}
	if _, err := segment.NewTable(p.ColorRanges); err != nil {
		return fmt.Errorf("invalid color table: %w", err)
	}
	return nil
}

// Load reads configuration from a JSON file. Keys missing from the file
// keep their defaults, and a missing file yields DefaultConfig().
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are named) into the process environment. Missing files are ignored and
// variables already set are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from DESKMODE_* variables looked up with
// lookup (usually os.LookupEnv). Malformed numbers are reported and leave
// the field unchanged.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *float64) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}

	str(EnvLogLevel, &c.LogLevel)
	str(EnvFramesDir, &c.FramesDir)
	str(EnvFrameInterval, &c.FrameInterval)
	str(EnvSensorPath, &c.SensorPath)
	str(EnvWSAddr, &c.WSAddr)
	num(EnvMMPerPixel, &c.Pipeline.MMPerPixel)
	num(EnvROIScale, &c.Pipeline.ROIScale)
	num(EnvMinArea, &c.Pipeline.MinArea)

	return errors.Join(errs...)
}

// FromEnvironment builds the effective configuration: .env, then the JSON
// file named by path (or DESKMODE_CONFIG when path is empty), then
// environment overrides, then validation.
func FromEnvironment(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
