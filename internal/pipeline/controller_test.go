package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"testing"

	"invisibility-cloak/internal/background"
	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/frame"
	"invisibility-cloak/internal/mask"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type repeatSource struct {
	frame gocv.Mat
	left  int
}

func (s *repeatSource) Read(dst *gocv.Mat) error {
	if s.left == 0 {
		return frame.ErrEndOfStream
	}
	s.left--
	s.frame.CopyTo(dst)
	return nil
}

func (s *repeatSource) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bgr(rows, cols int, b, g, r float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), rows, cols, gocv.MatTypeCV8UC3)
}

// redSquareScene is a 100x100 green frame with a solid red 20x20 block at
// (40,40)-(60,60).
func redSquareScene() gocv.Mat {
	m := bgr(100, 100, 0, 255, 0)
	block := m.Region(image.Rect(40, 40, 60, 60))
	red := bgr(20, 20, 0, 0, 255)
	red.CopyTo(&block)
	red.Close()
	block.Close()
	return m
}

func newController(t *testing.T, tuningComposite bool) *Controller {
	t.Helper()
	c, err := New(Options{
		Refine:          mask.DefaultRefineParams(),
		Capture:         background.CaptureOptions{Samples: 3},
		TuningComposite: tuningComposite,
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func capture(t *testing.T, c *Controller, rows, cols int, b, g, r float64) {
	t.Helper()
	img := bgr(rows, cols, b, g, r)
	defer img.Close()
	_, err := c.Capture(context.Background(), &repeatSource{frame: img, left: 3}, 0)
	require.NoError(t, err)
}

func TestEndToEndRedSquare(t *testing.T) {
	c := newController(t, false)
	assert.Equal(t, "red", c.Model().Name())

	scene := redSquareScene()
	defer scene.Close()
	sceneBytes := scene.ToBytes()

	capture(t, c, 100, 100, 50, 50, 50)
	require.Equal(t, StateActive, c.State())

	out, err := c.Process(scene)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, StateActive, out.State)

	block := image.Rect(40, 40, 60, 60)
	grown := image.Rect(39, 39, 61, 61)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			p := image.Pt(x, y)
			in := p.In(block)
			require.Equal(t, in, out.RawMask.GetUCharAt(y, x) != 0, "raw mask at %v", p)
			require.Equal(t, p.In(grown), out.Mask.GetUCharAt(y, x) != 0, "refined mask at %v", p)

			v := out.Frame.GetVecbAt(y, x)
			if p.In(grown) {
				require.Equal(t, []uint8{50, 50, 50}, []uint8{v[0], v[1], v[2]}, "background at %v", p)
			} else {
				require.Equal(t, []uint8{0, 255, 0}, []uint8{v[0], v[1], v[2]}, "live at %v", p)
			}
		}
	}
	assert.InDelta(t, float64(22*22)/10000, out.Coverage(), 1e-9)
	assert.True(t, bytes.Equal(sceneBytes, scene.ToBytes()), "input frame untouched")
}

func TestAwaitingBackgroundPassesThrough(t *testing.T) {
	c := newController(t, false)
	scene := redSquareScene()
	defer scene.Close()

	out, err := c.Process(scene)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, StateAwaitingBackground, out.State)
	assert.True(t, bytes.Equal(scene.ToBytes(), out.Frame.ToBytes()))
	assert.True(t, out.Mask.Empty())
	assert.Zero(t, out.Coverage())
}

func TestCaptureFailureStaysAwaiting(t *testing.T) {
	c := newController(t, false)
	img := bgr(10, 10, 0, 0, 0)
	defer img.Close()

	_, err := c.Capture(context.Background(), &repeatSource{frame: img, left: 1}, 5)
	var capErr *background.CaptureError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, StateAwaitingBackground, c.State())
	assert.False(t, c.HasBackground())

	assert.Error(t, c.Handle(context.Background(), CaptureEvent{}))
}

func TestCaptureFailureKeepsActive(t *testing.T) {
	c := newController(t, false)
	capture(t, c, 10, 10, 1, 2, 3)
	before := c.Background()

	img := bgr(10, 10, 0, 0, 0)
	defer img.Close()
	err := c.Handle(context.Background(), CaptureEvent{Source: &repeatSource{frame: img}, Samples: 2})
	require.Error(t, err)

	assert.Equal(t, StateActive, c.State())
	assert.Same(t, before, c.Background())
}

func TestResetAndTuningTransitions(t *testing.T) {
	ctx := context.Background()
	c := newController(t, false)

	require.NoError(t, c.Handle(ctx, TuningToggleEvent{}))
	assert.Equal(t, StateTuning, c.State())
	require.NoError(t, c.Handle(ctx, TuningToggleEvent{}))
	assert.Equal(t, StateAwaitingBackground, c.State(), "no background, so tuning returns to awaiting")

	capture(t, c, 100, 100, 50, 50, 50)
	require.NoError(t, c.Handle(ctx, TuningToggleEvent{}))
	assert.Equal(t, StateTuning, c.State())

	scene := redSquareScene()
	defer scene.Close()
	out, err := c.Process(scene)
	require.NoError(t, err)
	assert.Equal(t, StateTuning, out.State)
	assert.False(t, out.RawMask.Empty())
	assert.False(t, out.Mask.Empty())
	assert.True(t, bytes.Equal(scene.ToBytes(), out.Frame.ToBytes()), "no composite while tuning by default")
	out.Close()

	require.NoError(t, c.Handle(ctx, TuningToggleEvent{}))
	assert.Equal(t, StateActive, c.State())

	require.NoError(t, c.Handle(ctx, ResetEvent{}))
	assert.Equal(t, StateAwaitingBackground, c.State())
	assert.False(t, c.HasBackground())

	require.NoError(t, c.Reset(), "reset is allowed from awaiting")
}

func TestCaptureWhileTuning(t *testing.T) {
	c := newController(t, true)
	_, err := c.ToggleTuning()
	require.NoError(t, err)

	capture(t, c, 100, 100, 50, 50, 50)
	assert.Equal(t, StateTuning, c.State())

	scene := redSquareScene()
	defer scene.Close()
	out, err := c.Process(scene)
	require.NoError(t, err)
	v := out.Frame.GetVecbAt(50, 50)
	assert.Equal(t, []uint8{50, 50, 50}, []uint8{v[0], v[1], v[2]}, "tuning composite shows the background")
	out.Close()

	state, err := c.ToggleTuning()
	require.NoError(t, err)
	assert.Equal(t, StateActive, state)
}

func TestResetFromTuning(t *testing.T) {
	c := newController(t, false)
	capture(t, c, 10, 10, 0, 0, 0)
	_, err := c.ToggleTuning()
	require.NoError(t, err)

	require.NoError(t, c.Reset())
	assert.Equal(t, StateAwaitingBackground, c.State())
	assert.Nil(t, c.Background())
}

func TestColorEvents(t *testing.T) {
	ctx := context.Background()
	c := newController(t, false)
	capture(t, c, 10, 10, 0, 0, 0)

	require.NoError(t, c.Handle(ctx, ColorEvent{Preset: "Blue"}))
	assert.Equal(t, "blue", c.Model().Name())
	assert.Equal(t, StateActive, c.State())

	err := c.Handle(ctx, ColorEvent{Preset: "purple"})
	var unknown *colorrange.UnknownPresetError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "blue", c.Model().Name(), "rejected event leaves the model alone")

	bounds := colorrange.Bounds{
		Lower: colorrange.HSV{H: 90, S: 50, V: 50},
		Upper: colorrange.HSV{H: 100, S: 255, V: 255},
	}
	require.NoError(t, c.Handle(ctx, ColorEvent{Bounds: []colorrange.Bounds{bounds}}))
	assert.Equal(t, []colorrange.Bounds{bounds}, c.Model().Ranges())

	bad := colorrange.Bounds{Lower: colorrange.HSV{H: 10, S: 200}, Upper: colorrange.HSV{H: 20, S: 100}}
	var invalid *colorrange.InvalidBoundsError
	require.True(t, errors.As(c.Handle(ctx, ColorEvent{Bounds: []colorrange.Bounds{bad}}), &invalid))

	green, err := colorrange.FromPreset("green")
	require.NoError(t, err)
	require.NoError(t, c.Handle(ctx, ColorEvent{Model: green}))
	assert.True(t, c.Model().Equal(green))

	assert.Error(t, c.Handle(ctx, ColorEvent{}))
	assert.Error(t, c.Handle(ctx, ColorEvent{Preset: "red", Model: green}))
	assert.Error(t, c.SetModel(colorrange.Model{}))
}

func TestDimensionMismatchInvalidatesBackground(t *testing.T) {
	c := newController(t, false)
	capture(t, c, 100, 100, 50, 50, 50)

	small := bgr(50, 60, 0, 0, 255)
	defer small.Close()
	out, err := c.Process(small)
	require.NoError(t, err)
	defer out.Close()

	assert.True(t, out.BackgroundInvalidated)
	assert.Equal(t, StateAwaitingBackground, out.State)
	assert.Equal(t, StateAwaitingBackground, c.State())
	assert.False(t, c.HasBackground())
	assert.True(t, bytes.Equal(small.ToBytes(), out.Frame.ToBytes()))
}

func TestDimensionMismatchWhileTuning(t *testing.T) {
	c := newController(t, true)
	capture(t, c, 100, 100, 50, 50, 50)
	_, err := c.ToggleTuning()
	require.NoError(t, err)

	small := bgr(50, 60, 0, 0, 255)
	defer small.Close()
	out, err := c.Process(small)
	require.NoError(t, err)
	defer out.Close()

	assert.True(t, out.BackgroundInvalidated)
	assert.Equal(t, StateTuning, c.State(), "tuning survives the lost background")
	assert.False(t, c.HasBackground())

	st, err := c.ToggleTuning()
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingBackground, st)
}

func TestQuit(t *testing.T) {
	ctx := context.Background()
	c := newController(t, false)
	capture(t, c, 10, 10, 0, 0, 0)

	require.NoError(t, c.Handle(ctx, QuitEvent{}))
	assert.Equal(t, StateStopped, c.State())
	assert.Nil(t, c.Background())

	img := bgr(10, 10, 0, 0, 0)
	defer img.Close()
	_, err := c.Process(img)
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, c.Handle(ctx, ResetEvent{}), ErrStopped)
	assert.ErrorIs(t, c.Handle(ctx, ColorEvent{Preset: "red"}), ErrStopped)
	assert.ErrorIs(t, c.Handle(ctx, TuningToggleEvent{}), ErrStopped)
	assert.ErrorIs(t, c.Handle(ctx, CaptureEvent{Source: &repeatSource{frame: img, left: 3}}), ErrStopped)
	assert.NoError(t, c.Quit())
}

func TestHandleRejectsNil(t *testing.T) {
	c := newController(t, false)
	assert.Error(t, c.Handle(context.Background(), nil))
}

func TestProcessRejectsBadFrame(t *testing.T) {
	c := newController(t, false)
	gray := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8U)
	defer gray.Close()
	_, err := c.Process(gray)
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-background", StateAwaitingBackground.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "tuning", StateTuning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
