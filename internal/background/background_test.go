package background

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"invisibility-cloak/internal/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

type matSource struct {
	frames []gocv.Mat
	next   int
	reads  int
}

func (s *matSource) Read(dst *gocv.Mat) error {
	s.reads++
	if s.next >= len(s.frames) {
		return frame.ErrEndOfStream
	}
	s.frames[s.next].CopyTo(dst)
	s.next++
	return nil
}

func (s *matSource) Close() error {
	for _, f := range s.frames {
		f.Close()
	}
	return nil
}

func solid(t *testing.T, rows, cols int, v float64) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), rows, cols, gocv.MatTypeCV8UC3)
}

// noisy returns a frame of base intensity with uniform noise in [-amp, amp].
func noisy(t *testing.T, r *rand.Rand, rows, cols int, base, amp int) gocv.Mat {
	t.Helper()
	buf := make([]byte, rows*cols*3)
	for i := range buf {
		buf[i] = byte(base + r.Intn(2*amp+1) - amp)
	}
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, buf)
	require.NoError(t, err)
	out := m.Clone()
	m.Close()
	return out
}

func pixels(m gocv.Mat) []float64 {
	raw := m.ToBytes()
	out := make([]float64, len(raw))
	for i, b := range raw {
		out[i] = float64(b)
	}
	return out
}

func TestCaptureAveragesNoise(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	src := &matSource{}
	for i := 0; i < 10; i++ {
		src.frames = append(src.frames, noisy(t, r, 32, 32, 100, 20))
	}
	defer src.Close()
	single := stat.Variance(pixels(src.frames[0]), nil)

	store := NewStore()
	defer store.Close()

	bg, err := store.Capture(context.Background(), src, CaptureOptions{Samples: 10})
	require.NoError(t, err)
	require.Same(t, bg, store.Current())

	assert.Equal(t, 10, bg.Samples)
	assert.Equal(t, 32, bg.Size().X)
	assert.Equal(t, gocv.MatTypeCV8UC3, bg.Image.Type())

	px := pixels(bg.Image)
	assert.InDelta(t, 100, stat.Mean(px, nil), 2)
	averaged := stat.Variance(px, nil)

	// Uniform noise of +-20 has variance (41*41-1)/12 = 140. The mean of ten
	// frames keeps 1/10 of it, plus 1/12 from rounding back to 8 bits.
	const sigma2 = 140.0
	assert.InDelta(t, sigma2, single, 15)
	assert.InDelta(t, sigma2/10+1.0/12, averaged, 2)
	assert.InDelta(t, 0.1, averaged/single, 0.03)
}

func TestCaptureSkipsWarmup(t *testing.T) {
	src := &matSource{frames: []gocv.Mat{
		solid(t, 4, 4, 255),
		solid(t, 4, 4, 255),
		solid(t, 4, 4, 40),
		solid(t, 4, 4, 60),
	}}
	defer src.Close()

	var phases []string
	store := NewStore()
	defer store.Close()
	bg, err := store.Capture(context.Background(), src, CaptureOptions{
		Samples: 2,
		Warmup:  2,
		OnSample: func(phase string, i, n int, _ gocv.Mat) {
			phases = append(phases, phase)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"warmup", "warmup", "sample", "sample"}, phases)
	assert.Equal(t, uint8(50), bg.Image.GetVecbAt(1, 1)[0])
	assert.InDelta(t, math.Sqrt(200), bg.Flicker, 0.01)
}

func TestCaptureEndsEarly(t *testing.T) {
	src := &matSource{frames: []gocv.Mat{solid(t, 4, 4, 10), solid(t, 4, 4, 10)}}
	defer src.Close()

	store := NewStore()
	defer store.Close()
	_, err := store.Capture(context.Background(), src, CaptureOptions{Samples: 5})
	require.Error(t, err)

	var capErr *CaptureError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 5, capErr.Requested)
	assert.Equal(t, 2, capErr.Collected)
	assert.ErrorIs(t, err, frame.ErrEndOfStream)
	assert.Nil(t, store.Current())
}

func TestCaptureFailureKeepsPrevious(t *testing.T) {
	store := NewStore()
	defer store.Close()

	good := &matSource{frames: []gocv.Mat{solid(t, 4, 4, 80)}}
	defer good.Close()
	first, err := store.Capture(context.Background(), good, CaptureOptions{Samples: 1})
	require.NoError(t, err)

	mixed := &matSource{frames: []gocv.Mat{solid(t, 4, 4, 10), solid(t, 8, 8, 10)}}
	defer mixed.Close()
	_, err = store.Capture(context.Background(), mixed, CaptureOptions{Samples: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first sample was 4x4")

	assert.Same(t, first, store.Current())
	assert.Equal(t, uint8(80), store.Current().Image.GetVecbAt(0, 0)[0])
}

func TestCaptureCancelled(t *testing.T) {
	src := &matSource{frames: []gocv.Mat{solid(t, 4, 4, 10), solid(t, 4, 4, 10)}}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStore()
	_, err := store.Capture(ctx, src, CaptureOptions{Samples: 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, src.reads)
	assert.Nil(t, store.Current())
}

func TestCaptureBlur(t *testing.T) {
	m := solid(t, 9, 9, 0)
	m.SetUCharAt(4, 4*3, 255)
	src := &matSource{frames: []gocv.Mat{m}}
	defer src.Close()

	store := NewStore()
	defer store.Close()
	bg, err := store.Capture(context.Background(), src, CaptureOptions{Samples: 1, BlurSize: 5})
	require.NoError(t, err)

	assert.Less(t, bg.Image.GetVecbAt(4, 4)[0], uint8(255))
	assert.Greater(t, bg.Image.GetVecbAt(4, 5)[0], uint8(0))
}

func TestCaptureOptionsValidate(t *testing.T) {
	for name, opts := range map[string]CaptureOptions{
		"zero samples":  {Samples: 0},
		"neg warmup":    {Samples: 1, Warmup: -1},
		"even blur":     {Samples: 1, BlurSize: 4},
		"negative blur": {Samples: 1, BlurSize: -3},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, opts.Validate())
		})
	}
	assert.NoError(t, DefaultCaptureOptions().Validate())
}

func TestClearIdempotent(t *testing.T) {
	store := NewStore()
	store.Clear()
	store.Clear()
	assert.Nil(t, store.Current())

	src := &matSource{frames: []gocv.Mat{solid(t, 2, 2, 1)}}
	defer src.Close()
	_, err := store.Capture(context.Background(), src, CaptureOptions{Samples: 1})
	require.NoError(t, err)
	store.Clear()
	store.Clear()
	assert.Nil(t, store.Current())
}
