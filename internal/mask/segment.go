// Package mask turns frames into binary cloak masks: HSV segmentation
// against a colour model, followed by morphological cleanup.
//
// Masks are single-channel CV8U Mats holding 0 or 255. A non-zero pixel
// marks where the background is shown instead of the live frame.
package mask

import (
	"errors"
	"fmt"

	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/frame"

	"gocv.io/x/gocv"
)

// Segmenter converts frames to HSV and tests every pixel against a model.
// The zero value is ready to use and holds no state between calls.
type Segmenter struct{}

// Segment returns a new raw mask for frame. frame is not modified.
func (Segmenter) Segment(img gocv.Mat, model colorrange.Model) (gocv.Mat, error) {
	return Segment(img, model)
}

// Segment is the package-level form of Segmenter.Segment.
func Segment(img gocv.Mat, model colorrange.Model) (gocv.Mat, error) {
	if err := frame.Validate(img); err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to segment frame: %w", err)
	}
	if model.IsZero() {
		return gocv.NewMat(), errors.New("failed to segment frame: empty colour model")
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	out := gocv.NewMatWithSize(img.Rows(), img.Cols(), gocv.MatTypeCV8U)
	part := gocv.NewMat()
	defer part.Close()

	for i, r := range model.Ranges() {
		lo := gocv.NewScalar(float64(r.Lower.H), float64(r.Lower.S), float64(r.Lower.V), 0)
		hi := gocv.NewScalar(float64(r.Upper.H), float64(r.Upper.S), float64(r.Upper.V), 0)
		if i == 0 {
			gocv.InRangeWithScalar(hsv, lo, hi, &out)
			continue
		}
		gocv.InRangeWithScalar(hsv, lo, hi, &part)
		gocv.BitwiseOr(out, part, &out)
	}
	return out, nil
}

// PixelHSV converts one BGR colour (Val1..Val3 of c) to HSV with the same
// conversion Segment applies to frames. Channels are rounded and saturated
// to 8 bits first.
func PixelHSV(c gocv.Scalar) colorrange.HSV {
	px := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(c.Val1, c.Val2, c.Val3, 0), 1, 1, gocv.MatTypeCV8UC3)
	defer px.Close()
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(px, &hsv, gocv.ColorBGRToHSV)

	v := hsv.GetVecbAt(0, 0)
	return colorrange.HSV{H: int(v[0]), S: int(v[1]), V: int(v[2])}
}
