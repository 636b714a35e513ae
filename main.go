// Package main provides the entry point for the invisibility cloak.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"invisibility-cloak/internal/app"
	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/config"
	"invisibility-cloak/internal/frame"
	"invisibility-cloak/internal/pipeline"
	"invisibility-cloak/internal/settings"
	"invisibility-cloak/internal/version"

	"gocv.io/x/gocv"
)

const (
	windowTitle = "Invisibility Cloak"
	tunerTitle  = "HSV Tuner"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	cam := flag.Int("cam", 0, "Camera index")
	device := flag.String("device", "", "Device path, stream URL or video file (overrides -cam)")
	color := flag.String("color", "", "Cloak colour preset: "+strings.Join(colorrange.Presets(), ", "))
	width := flag.Int("width", 0, "Requested frame width")
	height := flag.Int("height", 0, "Requested frame height")
	mirror := flag.Bool("mirror", true, "Flip the camera image horizontally")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["cam"] {
		cfg.Camera.Index = *cam
	}
	if set["device"] {
		cfg.Camera.Device = *device
	}
	if set["color"] {
		cfg.Color.Preset = *color
	}
	if set["width"] {
		cfg.Camera.Width = *width
	}
	if set["height"] {
		cfg.Camera.Height = *height
	}
	if set["mirror"] {
		cfg.Camera.Mirror = *mirror
	}
	if set["log-level"] {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	log.Info("starting", "version", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, set["color"], log); err != nil {
		log.Error("stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("cloak deactivated")
}

func run(ctx context.Context, cfg *config.Config, colorFromFlag bool, log *slog.Logger) error {
	store := settings.Open(cfg.Settings.Path, log)
	model, err := initialModel(cfg, store, colorFromFlag, log)
	if err != nil {
		return err
	}

	video, err := frame.OpenVideo(cfg.Camera.Source(), frame.VideoOptions{
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	})
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	w, h, fps := video.ActualSize()
	log.Info("camera opened", "source", video.Name(), "width", w, "height", h, "fps", fps)

	var src frame.Source = video
	if cfg.Camera.Mirror {
		src = frame.Mirror(video)
	}
	defer src.Close()

	ctrl, err := pipeline.New(pipeline.Options{
		Model:           model,
		Refine:          cfg.Refine,
		Capture:         cfg.Capture.Options(),
		TuningComposite: cfg.Tuning.Composite,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer ctrl.Close()

	win := gocv.NewWindow(windowTitle)
	defer win.Close()

	log.Info("controls: B capture background, SPACE reset, C cycle colour, T tuner, S save, P pick colour, R record, Q quit")
	return app.New(cfg, ctrl, app.Deps{
		Source:   src,
		Display:  win,
		Tuner:    app.NewTrackbarTuner(tunerTitle),
		Settings: store,
	}, log).Run(ctx)
}

// initialModel picks the -color flag first, then saved settings, then the
// configured preset.
func initialModel(cfg *config.Config, store *settings.File, colorFromFlag bool, log *slog.Logger) (colorrange.Model, error) {
	if !colorFromFlag {
		saved, ok, err := store.Load()
		switch {
		case err != nil:
			log.Warn("ignoring saved settings", "path", store.Path(), "error", err)
		case ok:
			log.Info("loaded saved colour", "path", store.Path(), "model", saved.String())
			return saved, nil
		}
	}
	m, err := colorrange.FromPreset(cfg.Color.Preset)
	if err != nil {
		return colorrange.Model{}, err
	}
	log.Info("using preset", "preset", m.Name(), "description", colorrange.Describe(m.Name()))
	return m, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
