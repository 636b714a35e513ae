// Package hud draws the on-screen status overlay: frame rate, pipeline
// state, recording flag, colour model and host load.
package hud

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultFPSWindow is the number of frame intervals averaged.
const DefaultFPSWindow = 30

// FPSCounter reports a rolling mean frame rate.
type FPSCounter struct {
	window    int
	intervals []float64 // seconds, ring buffer
	next      int
	last      time.Time
}

// NewFPSCounter averages over the last window intervals.
func NewFPSCounter(window int) *FPSCounter {
	if window < 1 {
		window = DefaultFPSWindow
	}
	return &FPSCounter{window: window, intervals: make([]float64, 0, window)}
}

// Tick records a frame at now.
func (c *FPSCounter) Tick(now time.Time) {
	if !c.last.IsZero() {
		d := now.Sub(c.last).Seconds()
		if len(c.intervals) < c.window {
			c.intervals = append(c.intervals, d)
		} else {
			c.intervals[c.next] = d
			c.next = (c.next + 1) % c.window
		}
	}
	c.last = now
}

// FPS returns the current rate, 0 until two frames were seen.
func (c *FPSCounter) FPS() float64 {
	if len(c.intervals) == 0 {
		return 0
	}
	mean := stat.Mean(c.intervals, nil)
	if mean <= 0 {
		return 0
	}
	return 1 / mean
}
