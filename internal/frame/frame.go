// Package frame defines the boundary between the cloak pipeline and whatever
// produces or consumes frames: cameras, video files, image directories,
// windows and recorders.
//
// A frame is a gocv.Mat of type MatTypeCV8UC3 in OpenCV's BGR channel order.
package frame

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrEndOfStream is returned by finite sources once every frame was read.
var ErrEndOfStream = errors.New("end of frame stream")

// Source yields frames one at a time. Read fills dst, reusing its storage
// when the size matches. Implementations are not safe for concurrent use.
type Source interface {
	Read(dst *gocv.Mat) error
	Close() error
}

// Sink accepts output frames for display or persistence. Write must not
// retain the Mat after returning.
type Sink interface {
	Write(frame gocv.Mat) error
	Close() error
}

// AcquisitionError reports a device or stream failure. The run loop treats
// it as fatal; nothing in the pipeline retries it.
type AcquisitionError struct {
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("frame acquisition from %s failed: %v", e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Size returns the width and height of m as a point.
func Size(m gocv.Mat) image.Point {
	return image.Point{X: m.Cols(), Y: m.Rows()}
}

// SameSize reports whether every Mat has the same width and height.
func SameSize(mats ...gocv.Mat) bool {
	if len(mats) < 2 {
		return true
	}
	want := Size(mats[0])
	for _, m := range mats[1:] {
		if Size(m) != want {
			return false
		}
	}
	return true
}

// Validate checks that m is a non-empty 8-bit BGR frame.
func Validate(m gocv.Mat) error {
	if m.Empty() {
		return errors.New("empty frame")
	}
	if m.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("frame must be 8-bit 3-channel BGR, got type %v", m.Type())
	}
	return nil
}
