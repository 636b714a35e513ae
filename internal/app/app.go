// Package app runs the interactive cloak: it pulls frames, drives the
// pipeline controller, draws the HUD and turns key presses into events.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/config"
	"invisibility-cloak/internal/frame"
	"invisibility-cloak/internal/hud"
	"invisibility-cloak/internal/pipeline"
	"invisibility-cloak/internal/record"
	"invisibility-cloak/internal/settings"
	"invisibility-cloak/pkg/colorutil"

	"gocv.io/x/gocv"
)

const bannerDuration = 2 * time.Second

// Recording is an active output file.
type Recording interface {
	frame.Sink
	Path() string
	Frames() int
}

// RecordingResult is the EventRecordingStopped payload.
type RecordingResult struct {
	Path   string
	Frames int
}

// RecorderFunc starts a recording.
type RecorderFunc func(ctx context.Context, opts record.Options) (Recording, error)

// Deps are the collaborators App drives. Source, Display and Settings are
// required; Tuner may be nil to disable the tuner window.
type Deps struct {
	Source        frame.Source
	Display       Display
	Tuner         Tuner
	Settings      *settings.File
	StartRecorder RecorderFunc
}

// App holds the interactive session.
type App struct {
	cfg  *config.Config
	log  *slog.Logger
	ctrl *pipeline.Controller
	deps Deps

	fps  *hud.FPSCounter
	load *hud.LoadSampler
	now  func() time.Time

	recorder    Recording
	tunerPrev   colorrange.Model // model restored when the tuner closes
	tunerLast   colorrange.Bounds
	banner      string
	bannerUntil time.Time

	mu        sync.Mutex
	listeners map[EventType][]EventListener
}

// New wires an App. The controller is quit when Run returns.
func New(cfg *config.Config, ctrl *pipeline.Controller, deps Deps, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	if deps.StartRecorder == nil {
		deps.StartRecorder = func(ctx context.Context, opts record.Options) (Recording, error) {
			return record.Start(ctx, opts, log)
		}
	}
	a := &App{
		cfg:       cfg,
		log:       log,
		ctrl:      ctrl,
		deps:      deps,
		fps:       hud.NewFPSCounter(hud.DefaultFPSWindow),
		load:      hud.NewLoadSampler(time.Second),
		now:       time.Now,
		listeners: make(map[EventType][]EventListener),
	}
	a.registerNotices()
	return a
}

func (a *App) registerNotices() {
	a.On(EventBackgroundCaptured, func(interface{}) { a.notice("Background captured!") })
	a.On(EventBackgroundFailed, func(interface{}) { a.notice("Background capture failed") })
	a.On(EventBackgroundReset, func(interface{}) { a.notice("Background reset") })
	a.On(EventBackgroundInvalidated, func(interface{}) { a.notice("Camera changed: press B") })
	a.On(EventSettingsSaved, func(interface{}) { a.notice("HSV settings saved") })
	a.On(EventRecordingStarted, func(interface{}) { a.notice("Recording") })
	a.On(EventRecordingStopped, func(data interface{}) {
		if res, ok := data.(RecordingResult); ok {
			a.notice(fmt.Sprintf("Saved %d frames", res.Frames))
		}
	})
	a.On(EventColorChanged, func(data interface{}) {
		if m, ok := data.(colorrange.Model); ok {
			a.notice("Color: " + m.Name())
		}
	})
}

func (a *App) notice(text string) {
	a.banner = text
	a.bannerUntil = a.now().Add(bannerDuration)
}

// Run loops until quit, end of stream or ctx cancellation. An acquisition
// failure is returned; everything else is logged and shown on screen.
func (a *App) Run(ctx context.Context) error {
	defer a.stop()

	if a.cfg.Settings.Watch && a.deps.Settings != nil {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			err := a.deps.Settings.Watch(watchCtx, func(m colorrange.Model) {
				if err := a.ctrl.SetModel(m); err != nil {
					a.log.Warn("settings change rejected", "error", err)
				}
			})
			if err != nil {
				a.log.Warn("settings watcher stopped", "error", err)
			}
		}()
	}

	img := gocv.NewMat()
	defer img.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := a.deps.Source.Read(&img); err != nil {
			if errors.Is(err, frame.ErrEndOfStream) {
				a.log.Info("end of stream")
				return nil
			}
			return err
		}
		quit, err := a.Step(ctx, img)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// Step processes and shows one live frame, then handles one key press.
func (a *App) Step(ctx context.Context, live gocv.Mat) (quit bool, err error) {
	now := a.now()
	a.fps.Tick(now)
	a.syncTuner()

	out, err := a.ctrl.Process(live)
	if err != nil {
		return false, fmt.Errorf("failed to process frame: %w", err)
	}
	defer out.Close()

	if out.BackgroundInvalidated {
		a.Emit(EventBackgroundInvalidated, nil)
	}
	a.record(out.Frame)

	// The frame was already recorded, so the HUD can be drawn in place.
	view := out.Frame
	if out.State == pipeline.StateTuning {
		view = hud.SideBySide(out.Frame, out.Mask)
		defer view.Close()
	}

	hud.Draw(&view, a.status(out, now))
	if a.banner != "" && now.Before(a.bannerUntil) {
		hud.DrawBanner(&view, a.banner, colorutil.Yellow)
	}
	a.deps.Display.IMShow(view)

	key := a.deps.Display.WaitKey(1)
	return a.HandleKey(ctx, key, live)
}

func (a *App) status(out *pipeline.Output, now time.Time) hud.Status {
	return hud.Status{
		FPS:        a.fps.FPS(),
		Background: a.ctrl.HasBackground(),
		Recording:  a.recorder != nil,
		Tuning:     out.State == pipeline.StateTuning,
		State:      out.State.String(),
		Color:      a.ctrl.Model().Name(),
		Coverage:   out.Coverage(),
		Load:       a.load.Sample(now),
	}
}

// syncTuner pushes slider changes to the controller.
func (a *App) syncTuner() {
	t := a.deps.Tuner
	if t == nil || !t.IsOpen() {
		return
	}
	b := t.Bounds()
	if b == a.tunerLast {
		return
	}
	a.tunerLast = b
	if err := a.ctrl.SetBounds(b); err != nil {
		a.log.Debug("tuner bounds rejected", "bounds", b.String(), "error", err)
		return
	}
	a.Emit(EventColorChanged, a.ctrl.Model())
}

func (a *App) record(img gocv.Mat) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Write(img); err != nil {
		a.log.Error("recording stopped on write error", "error", err)
		a.stopRecording()
	}
}

func (a *App) toggleRecording(ctx context.Context, live gocv.Mat) {
	if a.recorder != nil {
		a.stopRecording()
		return
	}
	size := frame.Size(live)
	r, err := a.deps.StartRecorder(ctx, record.Options{
		Dir:    a.cfg.Record.Dir,
		FPS:    a.cfg.Record.FPS,
		Codec:  a.cfg.Record.Codec,
		Width:  size.X,
		Height: size.Y,
	})
	if err != nil {
		a.log.Error("failed to start recording", "error", err)
		a.notice("Recording failed")
		return
	}
	a.recorder = r
	a.Emit(EventRecordingStarted, r.Path())
}

func (a *App) stopRecording() {
	if a.recorder == nil {
		return
	}
	res := RecordingResult{Path: a.recorder.Path()}
	if err := a.recorder.Close(); err != nil {
		a.log.Error("failed to finish recording", "path", res.Path, "error", err)
	}
	res.Frames = a.recorder.Frames()
	a.recorder = nil
	a.Emit(EventRecordingStopped, res)
}

func (a *App) stop() {
	a.stopRecording()
	if a.deps.Tuner != nil {
		a.deps.Tuner.Close()
	}
	if err := a.ctrl.Quit(); err != nil {
		a.log.Warn("failed to stop pipeline", "error", err)
	}
}

// captureProgress draws the countdown and sampling progress during a
// background capture.
func (a *App) captureProgress(phase string, i, n int, f gocv.Mat) {
	view := f.Clone()
	defer view.Close()

	switch phase {
	case "warmup":
		fps := a.cfg.Camera.FPS
		if fps <= 0 {
			fps = 30
		}
		left := int(math.Ceil(float64(n-i) / fps))
		hud.DrawBanner(&view, fmt.Sprint(left), colorutil.Yellow)
		gocv.PutText(&view, "Step out of frame!", image.Pt(50, 50), gocv.FontHersheySimplex, 1, colorutil.Yellow, 2)
	default:
		gocv.PutText(&view, fmt.Sprintf("Capturing: %d/%d", i+1, n), image.Pt(50, 50), gocv.FontHersheySimplex, 1, colorutil.Green, 2)
		hud.DrawProgress(&view, i+1, n)
	}
	a.deps.Display.IMShow(view)
	a.deps.Display.WaitKey(1)
}
