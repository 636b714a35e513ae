package pipeline

import (
	"context"
	"errors"
	"fmt"

	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/frame"

	"gocv.io/x/gocv"
)

// Event is a discrete request from the UI or another producer.
type Event interface {
	event()
}

// CaptureEvent asks for a new background from Source. Samples overrides
// the configured sample count when positive. OnSample, when set, replaces
// the configured progress callback for this capture only.
type CaptureEvent struct {
	Source   frame.Source
	Samples  int
	OnSample func(phase string, i, n int, f gocv.Mat)
}

// ResetEvent discards the background.
type ResetEvent struct{}

// ColorEvent replaces the colour model. Exactly one field must be set.
type ColorEvent struct {
	Preset string
	Bounds []colorrange.Bounds
	Model  colorrange.Model
}

// TuningToggleEvent enters or leaves tuning mode.
type TuningToggleEvent struct{}

// QuitEvent stops the controller for good.
type QuitEvent struct{}

func (CaptureEvent) event()      {}
func (ResetEvent) event()        {}
func (ColorEvent) event()        {}
func (TuningToggleEvent) event() {}
func (QuitEvent) event()         {}

// Handle dispatches ev to the matching controller method.
func (c *Controller) Handle(ctx context.Context, ev Event) error {
	switch ev := ev.(type) {
	case CaptureEvent:
		_, err := c.capture(ctx, ev)
		return err
	case ResetEvent:
		return c.Reset()
	case ColorEvent:
		return c.applyColor(ev)
	case TuningToggleEvent:
		_, err := c.ToggleTuning()
		return err
	case QuitEvent:
		return c.Quit()
	case nil:
		return errors.New("nil event")
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

func (c *Controller) applyColor(ev ColorEvent) error {
	set := 0
	if ev.Preset != "" {
		set++
	}
	if len(ev.Bounds) > 0 {
		set++
	}
	if !ev.Model.IsZero() {
		set++
	}
	if set != 1 {
		return fmt.Errorf("colour event must set exactly one of preset, bounds or model (got %d)", set)
	}

	switch {
	case ev.Preset != "":
		return c.SetPreset(ev.Preset)
	case len(ev.Bounds) > 0:
		return c.SetBounds(ev.Bounds...)
	default:
		return c.SetModel(ev.Model)
	}
}
