package app

import (
	"context"
	"errors"
	"image"
	"unicode"

	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/frame"
	"invisibility-cloak/internal/mask"
	"invisibility-cloak/internal/pipeline"

	"gocv.io/x/gocv"
)

const (
	keyNone   = -1
	keyEscape = 27
	keySpace  = ' '

	// samplePatch is the side of the centre square averaged by 'p'.
	samplePatch = 5
)

// HandleKey applies one key press. live is the unprocessed frame the key
// was pressed on. Only acquisition failures during capture are returned as
// errors; everything else is reported on screen.
func (a *App) HandleKey(ctx context.Context, key int, live gocv.Mat) (quit bool, err error) {
	if key == keyNone {
		return false, nil
	}

	switch unicode.ToLower(rune(key & 0xFF)) {
	case 'q', keyEscape:
		a.log.Info("quit requested")
		return true, nil
	case 'b':
		return false, a.captureBackground(ctx)
	case keySpace:
		if err := a.ctrl.Handle(ctx, pipeline.ResetEvent{}); err != nil {
			return false, err
		}
		a.log.Info("background reset")
		a.Emit(EventBackgroundReset, nil)
	case 'c':
		next := colorrange.NextPreset(a.ctrl.Model().Name())
		if err := a.ctrl.Handle(ctx, pipeline.ColorEvent{Preset: next}); err != nil {
			return false, err
		}
		a.log.Info("switched colour", "preset", next, "description", colorrange.Describe(next))
		a.Emit(EventColorChanged, a.ctrl.Model())
	case 't':
		a.toggleTuner(ctx)
	case 's':
		a.saveSettings()
	case 'r':
		a.toggleRecording(ctx, live)
	case 'p':
		a.pickColor(live)
	}
	return false, nil
}

func (a *App) captureBackground(ctx context.Context) error {
	a.log.Info("capturing background, step out of the frame")
	err := a.ctrl.Handle(ctx, pipeline.CaptureEvent{
		Source:   a.deps.Source,
		OnSample: a.captureProgress,
	})
	if err == nil {
		a.Emit(EventBackgroundCaptured, a.ctrl.Background())
		return nil
	}

	a.Emit(EventBackgroundFailed, err)
	var acqErr *frame.AcquisitionError
	if errors.As(err, &acqErr) {
		return err
	}
	a.log.Warn("background capture failed", "error", err)
	return nil
}

func (a *App) toggleTuner(ctx context.Context) {
	if err := a.ctrl.Handle(ctx, pipeline.TuningToggleEvent{}); err != nil {
		a.log.Warn("failed to toggle tuning", "error", err)
		return
	}
	tuning := a.ctrl.State() == pipeline.StateTuning
	a.Emit(EventTuningToggled, tuning)

	t := a.deps.Tuner
	if t == nil {
		return
	}
	if tuning {
		a.tunerPrev = a.ctrl.Model()
		initial := a.tunerPrev.Ranges()[0]
		t.Open(initial)
		a.tunerLast = initial
		return
	}

	t.Close()
	if !a.tunerPrev.IsZero() {
		if err := a.ctrl.SetModel(a.tunerPrev); err == nil {
			a.Emit(EventColorChanged, a.tunerPrev)
		}
		a.tunerPrev = colorrange.Model{}
	}
}

// saveSettings stores the tuner bounds when tuning, else the active model.
func (a *App) saveSettings() {
	if a.deps.Settings == nil {
		return
	}
	m := a.ctrl.Model()
	if t := a.deps.Tuner; t != nil && t.IsOpen() {
		tm, err := colorrange.WithBounds(t.Bounds())
		if err != nil {
			a.log.Warn("tuner bounds are not valid, not saving", "error", err)
			a.notice("Invalid HSV range")
			return
		}
		m = tm
	}
	if err := a.deps.Settings.Save(m); err != nil {
		a.log.Error("failed to save settings", "error", err)
		a.notice("Save failed")
		return
	}
	a.Emit(EventSettingsSaved, a.deps.Settings.Path())
}

// pickColor builds a model around the mean colour of the centre patch.
func (a *App) pickColor(live gocv.Mat) {
	if live.Empty() {
		return
	}
	cx, cy := live.Cols()/2, live.Rows()/2
	half := samplePatch / 2
	rect := image.Rect(cx-half, cy-half, cx+half+1, cy+half+1).Intersect(image.Rect(0, 0, live.Cols(), live.Rows()))
	if rect.Empty() {
		return
	}

	patch := live.Region(rect)
	mean := patch.Mean()
	patch.Close()

	hsv := mask.PixelHSV(mean)
	m, err := colorrange.FromSample(hsv, colorrange.DefaultTolerance())
	if err != nil {
		a.log.Warn("failed to build model from sample", "error", err)
		return
	}
	if err := a.ctrl.SetModel(m); err != nil {
		a.log.Warn("sampled model rejected", "error", err)
		return
	}
	a.log.Info("picked colour", "hsv", hsv.String(), "model", m.String())
	a.Emit(EventColorChanged, m)
}
