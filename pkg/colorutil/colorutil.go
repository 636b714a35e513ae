// Package colorutil provides shared color utilities for the cloak application.
package colorutil

import "image/color"

// HUD and overlay colors. gocv swaps R and B when drawing into BGR Mats, so
// these are plain RGB.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Silver = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)
