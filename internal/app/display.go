package app

import (
	"invisibility-cloak/internal/colorrange"

	"gocv.io/x/gocv"
)

// Display shows frames and reports key presses. *gocv.Window satisfies it.
type Display interface {
	IMShow(img gocv.Mat)
	WaitKey(delay int) int
}

// Tuner is the HSV bounds editor shown in tuning mode.
type Tuner interface {
	Open(initial colorrange.Bounds)
	Bounds() colorrange.Bounds
	IsOpen() bool
	Close()
}

var trackbarNames = [6]string{"H Min", "S Min", "V Min", "H Max", "S Max", "V Max"}

// TrackbarTuner is a HighGUI window with six sliders.
type TrackbarTuner struct {
	name string
	win  *gocv.Window
	bars [6]*gocv.Trackbar
}

// NewTrackbarTuner returns a closed tuner; Open creates the window.
func NewTrackbarTuner(name string) *TrackbarTuner {
	return &TrackbarTuner{name: name}
}

// Open creates the window with sliders at initial.
func (t *TrackbarTuner) Open(initial colorrange.Bounds) {
	if t.win != nil {
		return
	}
	t.win = gocv.NewWindow(t.name)
	t.win.ResizeWindow(400, 300)

	maxima := [6]int{colorrange.MaxHue, colorrange.MaxSat, colorrange.MaxVal, colorrange.MaxHue, colorrange.MaxSat, colorrange.MaxVal}
	start := [6]int{initial.Lower.H, initial.Lower.S, initial.Lower.V, initial.Upper.H, initial.Upper.S, initial.Upper.V}
	for i, name := range trackbarNames {
		t.bars[i] = t.win.CreateTrackbar(name, maxima[i])
		t.bars[i].SetPos(start[i])
	}
}

// Bounds reads the current slider positions.
func (t *TrackbarTuner) Bounds() colorrange.Bounds {
	if t.win == nil {
		return colorrange.Bounds{}
	}
	var p [6]int
	for i, b := range t.bars {
		p[i] = b.GetPos()
	}
	return colorrange.Bounds{
		Lower: colorrange.HSV{H: p[0], S: p[1], V: p[2]},
		Upper: colorrange.HSV{H: p[3], S: p[4], V: p[5]},
	}
}

// IsOpen reports whether the window exists.
func (t *TrackbarTuner) IsOpen() bool {
	return t.win != nil
}

// Close destroys the window.
func (t *TrackbarTuner) Close() {
	if t.win == nil {
		return
	}
	t.win.Close()
	t.win = nil
	t.bars = [6]*gocv.Trackbar{}
}
