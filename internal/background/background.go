// Package background holds the static scene the cloak reveals.
//
// A background is built by averaging several consecutive frames, which
// suppresses sensor noise and lighting flicker that a single grab would bake
// into every composited frame.
package background

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"invisibility-cloak/internal/frame"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Background is a captured reference image plus capture metadata. The Mat
// is owned by the Store that produced it; callers must not Close it.
type Background struct {
	ID         uuid.UUID
	Image      gocv.Mat
	Samples    int
	CapturedAt time.Time

	// Flicker is the standard deviation of the per-sample mean intensity,
	// in 8-bit levels. High values mean the scene lighting was unstable.
	Flicker float64
}

// Size returns the background dimensions.
func (b *Background) Size() image.Point {
	return frame.Size(b.Image)
}

// CaptureOptions configures a capture.
type CaptureOptions struct {
	Samples int // frames averaged; 20-60 is typical
	Warmup  int // frames read and discarded first, letting the subject leave
	// BlurSize is an odd Gaussian kernel applied to the average; 0 disables.
	BlurSize int

	// OnSample, if set, sees every frame as it is read. phase is "warmup" or
	// "sample"; i counts from 0 within the phase.
	OnSample func(phase string, i, n int, f gocv.Mat)
}

// DefaultCaptureOptions gives a two second settling period at 30fps, 30
// averaged frames and a light blur.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		Samples:  30,
		Warmup:   60,
		BlurSize: 5,
	}
}

// Validate checks option ranges.
func (o CaptureOptions) Validate() error {
	if o.Samples < 1 {
		return fmt.Errorf("capture samples must be >= 1, got %d", o.Samples)
	}
	if o.Warmup < 0 {
		return fmt.Errorf("capture warmup must be >= 0, got %d", o.Warmup)
	}
	if o.BlurSize < 0 || (o.BlurSize > 0 && o.BlurSize%2 == 0) {
		return fmt.Errorf("capture blur size must be 0 or a positive odd number, got %d", o.BlurSize)
	}
	return nil
}

// Store owns zero or one Background.
type Store struct {
	mu      sync.RWMutex
	current *Background
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the stored background, or nil if none was captured.
func (s *Store) Current() *Background {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Clear drops the stored background. Safe to call on an empty store.
func (s *Store) Clear() {
	s.mu.Lock()
	old := s.current
	s.current = nil
	s.mu.Unlock()

	if old != nil {
		old.Image.Close()
	}
}

// Close releases the stored background.
func (s *Store) Close() error {
	s.Clear()
	return nil
}

// Capture reads opts.Warmup + opts.Samples frames from src and stores the
// per-pixel mean of the sampled frames, replacing any previous background.
// On any failure the store is left exactly as it was.
func (s *Store) Capture(ctx context.Context, src frame.Source, opts CaptureOptions) (*Background, error) {
	if err := opts.Validate(); err != nil {
		return nil, &CaptureError{Requested: opts.Samples, Err: err}
	}

	bg, err := average(ctx, src, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	old := s.current
	s.current = bg
	s.mu.Unlock()

	if old != nil {
		old.Image.Close()
	}
	return bg, nil
}

func average(ctx context.Context, src frame.Source, opts CaptureOptions) (*Background, error) {
	cur := gocv.NewMat()
	defer cur.Close()

	fail := func(collected int, err error) (*Background, error) {
		return nil, &CaptureError{Requested: opts.Samples, Collected: collected, Err: err}
	}

	for i := 0; i < opts.Warmup; i++ {
		if err := ctx.Err(); err != nil {
			return fail(0, err)
		}
		if err := readFrame(src, &cur); err != nil {
			return fail(0, err)
		}
		if opts.OnSample != nil {
			opts.OnSample("warmup", i, opts.Warmup, cur)
		}
	}

	acc := gocv.NewMat()
	defer acc.Close()
	f32 := gocv.NewMat()
	defer f32.Close()

	var size image.Point
	means := make([]float64, 0, opts.Samples)

	for i := 0; i < opts.Samples; i++ {
		if err := ctx.Err(); err != nil {
			return fail(i, err)
		}
		if err := readFrame(src, &cur); err != nil {
			return fail(i, err)
		}

		if i == 0 {
			size = frame.Size(cur)
			acc.Close()
			acc = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV32FC3)
		} else if got := frame.Size(cur); got != size {
			return fail(i, fmt.Errorf("sample %d is %dx%d, first sample was %dx%d (camera reconfigured?)",
				i, got.X, got.Y, size.X, size.Y))
		}

		cur.ConvertTo(&f32, gocv.MatTypeCV32FC3)
		gocv.Add(acc, f32, &acc)

		m := cur.Mean()
		means = append(means, (m.Val1+m.Val2+m.Val3)/3)

		if opts.OnSample != nil {
			opts.OnSample("sample", i, opts.Samples, cur)
		}
	}

	acc.DivideFloat(float32(opts.Samples))

	img := gocv.NewMat()
	acc.ConvertTo(&img, gocv.MatTypeCV8UC3)
	if opts.BlurSize > 0 {
		gocv.GaussianBlur(img, &img, image.Pt(opts.BlurSize, opts.BlurSize), 0, 0, gocv.BorderDefault)
	}

	flicker := 0.0
	if len(means) > 1 {
		flicker = stat.StdDev(means, nil)
	}

	return &Background{
		ID:         uuid.New(),
		Image:      img,
		Samples:    opts.Samples,
		CapturedAt: time.Now(),
		Flicker:    flicker,
	}, nil
}

func readFrame(src frame.Source, dst *gocv.Mat) error {
	if err := src.Read(dst); err != nil {
		if errors.Is(err, frame.ErrEndOfStream) {
			return fmt.Errorf("frame source ended early: %w", err)
		}
		return err
	}
	if err := frame.Validate(*dst); err != nil {
		return err
	}
	return nil
}
