package mask

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Kernel shapes accepted by RefineParams.KernelShape.
const (
	ShapeRect    = "rect"
	ShapeEllipse = "ellipse"
	ShapeCross   = "cross"
)

// RefineParams control mask cleanup. Larger kernels and more iterations
// remove more noise at the cost of edge precision.
type RefineParams struct {
	KernelSize       int    `yaml:"kernel_size"`
	KernelShape      string `yaml:"kernel_shape"`
	OpenIterations   int    `yaml:"open_iterations"`
	DilateIterations int    `yaml:"dilate_iterations"`
	// MinRegionFraction erases connected regions smaller than this share of
	// the frame area. 0 disables.
	MinRegionFraction float64 `yaml:"min_region_fraction"`
}

// defaultMinRegionFraction is 500 px on a 1280x720 frame.
const defaultMinRegionFraction = 500.0 / (1280 * 720)

// MinRegionArea returns the region area threshold in pixels for a frame of
// rows x cols.
func (p RefineParams) MinRegionArea(rows, cols int) float64 {
	return p.MinRegionFraction * float64(rows*cols)
}

// DefaultRefineParams are tuned for a 720p webcam feed.
func DefaultRefineParams() RefineParams {
	return RefineParams{
		KernelSize:        3,
		KernelShape:       ShapeRect,
		OpenIterations:    2,
		DilateIterations:  1,
		MinRegionFraction: defaultMinRegionFraction,
	}
}

// Validate reports the first invalid field.
func (p RefineParams) Validate() error {
	if p.KernelSize < 1 || p.KernelSize%2 == 0 {
		return fmt.Errorf("kernel size must be a positive odd number, got %d", p.KernelSize)
	}
	if _, err := morphShape(p.KernelShape); err != nil {
		return err
	}
	if p.OpenIterations < 0 {
		return fmt.Errorf("open iterations must be >= 0, got %d", p.OpenIterations)
	}
	if p.DilateIterations < 0 {
		return fmt.Errorf("dilate iterations must be >= 0, got %d", p.DilateIterations)
	}
	if p.MinRegionFraction < 0 || p.MinRegionFraction >= 1 {
		return fmt.Errorf("min region fraction must be in [0, 1), got %g", p.MinRegionFraction)
	}
	return nil
}

func morphShape(name string) (gocv.MorphShape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ShapeRect:
		return gocv.MorphRect, nil
	case ShapeEllipse:
		return gocv.MorphEllipse, nil
	case ShapeCross:
		return gocv.MorphCross, nil
	default:
		return 0, fmt.Errorf("unknown kernel shape %q (want rect, ellipse or cross)", name)
	}
}

// Refiner applies opening, dilation and small-region removal to raw masks.
// It holds only its structuring element and is safe for concurrent use.
type Refiner struct {
	params RefineParams

	mu     sync.RWMutex
	kernel gocv.Mat
	closed bool
}

// NewRefiner validates p and builds the structuring element.
func NewRefiner(p RefineParams) (*Refiner, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid refine parameters: %w", err)
	}
	shape, _ := morphShape(p.KernelShape)
	return &Refiner{
		params: p,
		kernel: gocv.GetStructuringElement(shape, image.Pt(p.KernelSize, p.KernelSize)),
	}, nil
}

// Params returns the parameters the refiner was built with.
func (r *Refiner) Params() RefineParams {
	return r.params
}

// Refine returns a cleaned copy of raw. raw is not modified.
func (r *Refiner) Refine(raw gocv.Mat) (gocv.Mat, error) {
	if raw.Empty() {
		return gocv.NewMat(), fmt.Errorf("failed to refine mask: empty mask")
	}
	if raw.Type() != gocv.MatTypeCV8U {
		return gocv.NewMat(), fmt.Errorf("failed to refine mask: want CV8U, got %v", raw.Type())
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return gocv.NewMat(), fmt.Errorf("failed to refine mask: refiner closed")
	}

	out := raw.Clone()

	// Opening runs all erosions before any dilation; alternating them would
	// be a different operator.
	for i := 0; i < r.params.OpenIterations; i++ {
		gocv.Erode(out, &out, r.kernel)
	}
	for i := 0; i < r.params.OpenIterations+r.params.DilateIterations; i++ {
		gocv.Dilate(out, &out, r.kernel)
	}

	if r.params.MinRegionFraction > 0 {
		removeSmallRegions(&out, r.params.MinRegionArea(out.Rows(), out.Cols()))
	}
	return out, nil
}

func removeSmallRegions(m *gocv.Mat, minArea float64) {
	contours := gocv.FindContours(*m, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) < minArea {
			gocv.DrawContours(m, contours, i, color.RGBA{}, -1)
		}
	}
}

// Close releases the structuring element. Refine fails afterwards.
func (r *Refiner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.kernel.Close()
}
