// Package composite blends the captured background into the live frame
// wherever the cloak mask is set.
package composite

import (
	"fmt"
	"image"

	"invisibility-cloak/internal/frame"

	"gocv.io/x/gocv"
)

// DimensionMismatchError means the background no longer matches the live
// feed, usually because the camera resolution changed after capture. The
// background must be discarded and captured again.
type DimensionMismatchError struct {
	Live       image.Point
	Background image.Point
	Mask       image.Point
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: live %dx%d, background %dx%d, mask %dx%d",
		e.Live.X, e.Live.Y, e.Background.X, e.Background.Y, e.Mask.X, e.Mask.Y)
}

// Composite returns a new frame showing background where mask is non-zero
// and live everywhere else. None of the inputs are modified.
func Composite(live, background, mask gocv.Mat) (gocv.Mat, error) {
	if !frame.SameSize(live, background, mask) {
		return gocv.NewMat(), &DimensionMismatchError{
			Live:       frame.Size(live),
			Background: frame.Size(background),
			Mask:       frame.Size(mask),
		}
	}
	if err := frame.Validate(live); err != nil {
		return gocv.NewMat(), fmt.Errorf("invalid live frame: %w", err)
	}
	if err := frame.Validate(background); err != nil {
		return gocv.NewMat(), fmt.Errorf("invalid background: %w", err)
	}
	if mask.Type() != gocv.MatTypeCV8U {
		return gocv.NewMat(), fmt.Errorf("invalid mask: want CV8U, got %v", mask.Type())
	}

	out := live.Clone()
	background.CopyToWithMask(&out, mask)
	return out, nil
}
