// Package pipeline sequences the per-frame cloak pipeline and owns all state
// that survives between frames: the colour model, the background and the
// processing mode.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"invisibility-cloak/internal/background"
	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/composite"
	"invisibility-cloak/internal/frame"
	"invisibility-cloak/internal/mask"

	"gocv.io/x/gocv"
)

// ErrStopped is returned by every operation after Quit.
var ErrStopped = errors.New("pipeline stopped")

// Options configure a Controller. Zero values fall back to defaults.
type Options struct {
	Model   colorrange.Model
	Refine  mask.RefineParams
	Capture background.CaptureOptions

	// TuningComposite keeps compositing while tuning so the effect of a
	// bound change is visible live.
	TuningComposite bool
}

// Output is the result of one Process call. Frame is always set; the masks
// are empty Mats when the state did not compute them.
type Output struct {
	Frame   gocv.Mat
	RawMask gocv.Mat
	Mask    gocv.Mat
	State   State

	// BackgroundInvalidated is set when the background stopped matching
	// the live frame size and was discarded.
	BackgroundInvalidated bool
}

// Close frees all Mats held by the output.
func (o *Output) Close() {
	o.Frame.Close()
	o.RawMask.Close()
	o.Mask.Close()
}

// Coverage returns the fraction of pixels selected by the refined mask, or
// 0 when no mask was computed.
func (o *Output) Coverage() float64 {
	if o.Mask.Empty() {
		return 0
	}
	total := o.Mask.Rows() * o.Mask.Cols()
	return float64(gocv.CountNonZero(o.Mask)) / float64(total)
}

// Controller is the single writer of the pipeline state. All methods are
// safe for concurrent use; a capture holds the controller for its whole
// duration.
type Controller struct {
	log *slog.Logger

	mu              sync.Mutex
	state           State
	model           colorrange.Model
	store           *background.Store
	refiner         *mask.Refiner
	segmenter       mask.Segmenter
	captureOpts     background.CaptureOptions
	tuningComposite bool
}

// New builds a controller in StateAwaitingBackground.
func New(opts Options, log *slog.Logger) (*Controller, error) {
	if log == nil {
		log = slog.Default()
	}

	model := opts.Model
	if model.IsZero() {
		var err error
		if model, err = colorrange.FromPreset(colorrange.DefaultPreset); err != nil {
			return nil, err
		}
	}

	refine := opts.Refine
	if refine == (mask.RefineParams{}) {
		refine = mask.DefaultRefineParams()
	}
	refiner, err := mask.NewRefiner(refine)
	if err != nil {
		return nil, err
	}

	capture := opts.Capture
	if capture.Samples == 0 {
		capture.Samples = background.DefaultCaptureOptions().Samples
	}
	if err := capture.Validate(); err != nil {
		refiner.Close()
		return nil, fmt.Errorf("invalid capture options: %w", err)
	}

	return &Controller{
		log:             log,
		state:           StateAwaitingBackground,
		model:           model,
		store:           background.NewStore(),
		refiner:         refiner,
		captureOpts:     capture,
		tuningComposite: opts.TuningComposite,
	}, nil
}

// State returns the current mode.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Model returns the active colour model.
func (c *Controller) Model() colorrange.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// HasBackground reports whether a background is held.
func (c *Controller) HasBackground() bool {
	return c.Background() != nil
}

// Background returns the held background, or nil. The returned value stays
// valid until the next Capture, Reset or Quit.
func (c *Controller) Background() *background.Background {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return nil
	}
	return c.store.Current()
}

// Capture averages samples frames from src into a new background. samples
// <= 0 uses the configured count. On failure the previous background and
// state are kept.
func (c *Controller) Capture(ctx context.Context, src frame.Source, samples int) (*background.Background, error) {
	return c.capture(ctx, CaptureEvent{Source: src, Samples: samples})
}

func (c *Controller) capture(ctx context.Context, ev CaptureEvent) (*background.Background, error) {
	if ev.Source == nil {
		return nil, errors.New("capture requires a frame source")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return nil, ErrStopped
	}

	opts := c.captureOpts
	if ev.Samples > 0 {
		opts.Samples = ev.Samples
	}
	if ev.OnSample != nil {
		opts.OnSample = ev.OnSample
	}

	bg, err := c.store.Capture(ctx, ev.Source, opts)
	if err != nil {
		c.log.Warn("background capture failed", "state", c.state, "error", err)
		return nil, err
	}

	// Tuning stays on; leaving it later lands in StateActive.
	if c.state != StateTuning {
		c.setState(StateActive)
	}
	c.log.Info("background captured",
		"id", bg.ID,
		"samples", bg.Samples,
		"size", fmt.Sprintf("%dx%d", bg.Size().X, bg.Size().Y),
		"flicker", fmt.Sprintf("%.2f", bg.Flicker))
	return bg, nil
}

// Reset discards the background and returns to StateAwaitingBackground.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return ErrStopped
	}
	c.store.Clear()
	c.setState(StateAwaitingBackground)
	return nil
}

// SetModel replaces the colour model. The state is unchanged.
func (c *Controller) SetModel(m colorrange.Model) error {
	if m.IsZero() {
		return &colorrange.InvalidBoundsError{Index: -1, Reason: "model has no ranges"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return ErrStopped
	}
	if !c.model.Equal(m) {
		c.log.Info("colour model changed", "model", m.String())
	}
	c.model = m
	return nil
}

// SetPreset switches to a named preset.
func (c *Controller) SetPreset(name string) error {
	m, err := colorrange.FromPreset(name)
	if err != nil {
		return err
	}
	return c.SetModel(m)
}

// SetBounds switches to an explicit set of bounds.
func (c *Controller) SetBounds(pairs ...colorrange.Bounds) error {
	m, err := colorrange.WithBounds(pairs...)
	if err != nil {
		return err
	}
	return c.SetModel(m)
}

// ToggleTuning enters tuning mode, or leaves it for StateActive when a
// background is held and StateAwaitingBackground otherwise.
func (c *Controller) ToggleTuning() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateStopped:
		return c.state, ErrStopped
	case StateTuning:
		if c.store.Current() != nil {
			c.setState(StateActive)
		} else {
			c.setState(StateAwaitingBackground)
		}
	default:
		c.setState(StateTuning)
	}
	return c.state, nil
}

// Quit releases the background and refiner. Further calls return
// ErrStopped, except Quit itself which is idempotent.
func (c *Controller) Quit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return nil
	}
	c.setState(StateStopped)
	c.store.Close()
	return c.refiner.Close()
}

// Close is Quit, for use with defer.
func (c *Controller) Close() error {
	return c.Quit()
}

// Process runs one frame through the pipeline for the current state. The
// input frame is not modified; the caller owns the returned Output.
func (c *Controller) Process(img gocv.Mat) (*Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return nil, ErrStopped
	}
	if err := frame.Validate(img); err != nil {
		return nil, fmt.Errorf("failed to process frame: %w", err)
	}

	out := &Output{RawMask: gocv.NewMat(), Mask: gocv.NewMat(), State: c.state}
	if c.state == StateAwaitingBackground {
		out.Frame = img.Clone()
		return out, nil
	}

	raw, err := c.segmenter.Segment(img, c.model)
	if err != nil {
		out.RawMask.Close()
		out.Mask.Close()
		return nil, err
	}
	out.RawMask.Close()
	out.RawMask = raw

	refined, err := c.refiner.Refine(raw)
	if err != nil {
		out.RawMask.Close()
		out.Mask.Close()
		return nil, err
	}
	out.Mask.Close()
	out.Mask = refined

	bg := c.store.Current()
	if bg == nil || (c.state == StateTuning && !c.tuningComposite) {
		out.Frame = img.Clone()
		return out, nil
	}

	comp, err := composite.Composite(img, bg.Image, refined)
	var dimErr *composite.DimensionMismatchError
	switch {
	case errors.As(err, &dimErr):
		c.log.Warn("background no longer matches the camera, capture it again", "error", err)
		c.store.Clear()
		if c.state == StateActive {
			c.setState(StateAwaitingBackground)
		}
		out.State = c.state
		out.Frame = img.Clone()
		out.BackgroundInvalidated = true
		return out, nil
	case err != nil:
		out.RawMask.Close()
		out.Mask.Close()
		return nil, err
	}
	out.Frame = comp
	return out, nil
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	c.log.Debug("state change", "from", c.state, "to", s)
	c.state = s
}
