// Package config loads the YAML run configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"invisibility-cloak/internal/background"
	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/mask"

	"gopkg.in/yaml.v3"
)

// Config is the complete run configuration.
type Config struct {
	Camera   CameraConfig      `yaml:"camera"`
	Color    ColorConfig       `yaml:"color"`
	Capture  CaptureConfig     `yaml:"capture"`
	Refine   mask.RefineParams `yaml:"refine"`
	Tuning   TuningConfig      `yaml:"tuning"`
	Record   RecordConfig      `yaml:"record"`
	Settings SettingsConfig    `yaml:"settings"`
	Log      LogConfig         `yaml:"log"`
}

// CameraConfig selects and configures the frame source.
type CameraConfig struct {
	Index  int     `yaml:"index"`  // camera index, used when Device is empty
	Device string  `yaml:"device"` // device path, stream URL or video file
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FPS    float64 `yaml:"fps"`
	Mirror bool    `yaml:"mirror"` // flip horizontally like a mirror
}

// Source returns the string handed to frame.OpenVideo.
func (c CameraConfig) Source() string {
	if c.Device != "" {
		return c.Device
	}
	return fmt.Sprint(c.Index)
}

// ColorConfig picks the initial colour model.
type ColorConfig struct {
	Preset string `yaml:"preset"`
}

// CaptureConfig controls background capture.
type CaptureConfig struct {
	Samples  int `yaml:"samples"`
	Warmup   int `yaml:"warmup"`    // frames shown as a countdown before sampling
	BlurSize int `yaml:"blur_size"` // odd, 0 disables
}

// Options converts to background.CaptureOptions.
func (c CaptureConfig) Options() background.CaptureOptions {
	return background.CaptureOptions{Samples: c.Samples, Warmup: c.Warmup, BlurSize: c.BlurSize}
}

// TuningConfig controls tuning mode.
type TuningConfig struct {
	Composite bool `yaml:"composite"` // keep compositing while tuning
}

// RecordConfig controls the ffmpeg recorder.
type RecordConfig struct {
	Dir   string  `yaml:"dir"`
	FPS   float64 `yaml:"fps"`
	Codec string  `yaml:"codec"`
}

// SettingsConfig locates the persisted colour settings.
type SettingsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"` // reload on external edits
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the built-in configuration.
func Default() *Config {
	capture := background.DefaultCaptureOptions()
	return &Config{
		Camera: CameraConfig{
			Width:  1280,
			Height: 720,
			FPS:    30,
			Mirror: true,
		},
		Color: ColorConfig{Preset: colorrange.DefaultPreset},
		Capture: CaptureConfig{
			Samples:  capture.Samples,
			Warmup:   capture.Warmup,
			BlurSize: capture.BlurSize,
		},
		Refine: mask.DefaultRefineParams(),
		Record: RecordConfig{
			Dir:   ".",
			FPS:   20,
			Codec: "libx264",
		},
		Settings: SettingsConfig{Path: "custom_hsv.json"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Camera.Index < 0 {
		return fmt.Errorf("camera.index must be >= 0")
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 || c.Camera.FPS < 0 {
		return fmt.Errorf("camera width, height and fps must not be negative")
	}
	if _, err := colorrange.FromPreset(c.Color.Preset); err != nil {
		return fmt.Errorf("color.preset: %w", err)
	}
	if err := c.Capture.Options().Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Refine.Validate(); err != nil {
		return fmt.Errorf("refine: %w", err)
	}
	if c.Record.FPS <= 0 {
		return fmt.Errorf("record.fps must be > 0")
	}
	if c.Record.Codec == "" {
		return fmt.Errorf("record.codec must be set")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}
