package hud

import (
	"fmt"
	"image"
	"image/color"

	"invisibility-cloak/pkg/colorutil"

	"gocv.io/x/gocv"
)

const (
	font      = gocv.FontHersheySimplex
	fontScale = 0.6
	lineStep  = 25
	margin    = 10
)

// Status is everything the overlay shows.
type Status struct {
	FPS        float64
	Background bool
	Recording  bool
	Tuning     bool
	State      string
	Color      string
	Coverage   float64 // fraction of the frame masked
	Load       Load
}

type line struct {
	text string
	c    color.RGBA
}

// Controls is the key help printed at the bottom of the frame.
var Controls = []string{
	"b: capture bg  space: reset  c: colour  p: pick colour",
	"t: tuner  s: save  r: record  q/esc: quit",
}

// Draw renders status in the top-left corner and the controls along the
// bottom edge of img.
func Draw(img *gocv.Mat, st Status) {
	lines := []line{
		{fmt.Sprintf("FPS: %.1f", st.FPS), colorutil.Green},
		{"Background: " + onOff(st.Background, "SET", "NOT SET"), pick(st.Background, colorutil.Green, colorutil.Red)},
		{"Recording: " + onOff(st.Recording, "ON", "OFF"), pick(st.Recording, colorutil.Red, colorutil.Silver)},
		{"Color: " + st.Color, colorutil.Yellow},
		{"Tuner: " + onOff(st.Tuning, "ON", "OFF"), pick(st.Tuning, colorutil.Yellow, colorutil.Silver)},
		{fmt.Sprintf("Mode: %s  mask %.0f%%", st.State, st.Coverage*100), colorutil.White},
	}
	if st.Load.OK {
		lines = append(lines, line{fmt.Sprintf("CPU %.0f%%  MEM %.0f%%", st.Load.CPU, st.Load.Mem), colorutil.Silver})
	}

	y := 30
	for _, l := range lines {
		shadowText(img, l.text, image.Pt(margin, y), l.c)
		y += lineStep
	}

	y = img.Rows() - margin - lineStep*(len(Controls)-1)
	for _, l := range Controls {
		shadowText(img, l, image.Pt(margin, y), colorutil.White)
		y += lineStep
	}
}

// DrawBanner writes a large message centred on img, used for the capture
// countdown and transient notices.
func DrawBanner(img *gocv.Mat, text string, c color.RGBA) {
	const scale, thickness = 1.5, 3
	size := gocv.GetTextSize(text, font, scale, thickness)
	pt := image.Pt((img.Cols()-size.X)/2, (img.Rows()+size.Y)/2)
	gocv.PutText(img, text, pt.Add(image.Pt(2, 2)), font, scale, colorutil.Black, thickness+2)
	gocv.PutText(img, text, pt, font, scale, c, thickness)
}

// DrawProgress draws a bar along the bottom of img filled to done/total.
func DrawProgress(img *gocv.Mat, done, total int) {
	if total <= 0 {
		return
	}
	if done > total {
		done = total
	}
	w := img.Cols() - 2*margin
	top := img.Rows() - margin - 12
	outline := image.Rect(margin, top, margin+w, top+12)
	gocv.Rectangle(img, outline, colorutil.White, 1)
	filled := image.Rect(margin, top, margin+w*done/total, top+12)
	gocv.Rectangle(img, filled, colorutil.Green, -1)
}

// SideBySide returns the frame with the mask shown next to it, for tuning.
func SideBySide(frame, mask gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	if mask.Empty() {
		frame.CopyTo(&out)
		return out
	}
	maskBGR := gocv.NewMat()
	defer maskBGR.Close()
	gocv.CvtColor(mask, &maskBGR, gocv.ColorGrayToBGR)
	gocv.Hconcat(frame, maskBGR, &out)
	return out
}

func shadowText(img *gocv.Mat, text string, pt image.Point, c color.RGBA) {
	gocv.PutText(img, text, pt.Add(image.Pt(1, 1)), font, fontScale, colorutil.Black, 3)
	gocv.PutText(img, text, pt, font, fontScale, c, 2)
}

func onOff(b bool, on, off string) string {
	if b {
		return on
	}
	return off
}

func pick(b bool, on, off color.RGBA) color.RGBA {
	if b {
		return on
	}
	return off
}
