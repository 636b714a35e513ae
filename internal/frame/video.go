package frame

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// VideoOptions are requested capture properties. Cameras may ignore them;
// ActualSize reports what the device settled on.
type VideoOptions struct {
	Width  int
	Height int
	FPS    float64
}

// VideoSource reads frames through OpenCV's VideoCapture: a camera index,
// a device path, a stream URL or a video file.
type VideoSource struct {
	capture *gocv.VideoCapture
	name    string
	finite  bool
}

// OpenVideo opens device. A purely numeric device is treated as a camera
// index; an existing file is read to its end and then reports
// ErrEndOfStream; anything else (device nodes, rtsp:// URLs) is live.
func OpenVideo(device string, opts VideoOptions) (*VideoSource, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		device = "0"
	}

	var target interface{} = device
	finite := false
	if idx, err := strconv.Atoi(device); err == nil {
		target = idx
	} else if fi, err := os.Stat(device); err == nil && fi.Mode().IsRegular() {
		finite = true
	}

	capture, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, &AcquisitionError{Source: device, Err: err}
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, &AcquisitionError{Source: device, Err: errors.New("device not opened")}
	}

	if !finite {
		if opts.Width > 0 {
			capture.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		}
		if opts.Height > 0 {
			capture.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
		}
		if opts.FPS > 0 {
			capture.Set(gocv.VideoCaptureFPS, opts.FPS)
		}
	}

	return &VideoSource{capture: capture, name: device, finite: finite}, nil
}

// Name returns the device string the source was opened with.
func (v *VideoSource) Name() string {
	return v.name
}

// ActualSize returns the frame size and rate the device reports.
func (v *VideoSource) ActualSize() (width, height int, fps float64) {
	return int(v.capture.Get(gocv.VideoCaptureFrameWidth)),
		int(v.capture.Get(gocv.VideoCaptureFrameHeight)),
		v.capture.Get(gocv.VideoCaptureFPS)
}

// Read grabs the next frame into dst.
func (v *VideoSource) Read(dst *gocv.Mat) error {
	if ok := v.capture.Read(dst); !ok || dst.Empty() {
		if v.finite {
			return ErrEndOfStream
		}
		return &AcquisitionError{Source: v.name, Err: errors.New("no frame returned (device unavailable or disconnected)")}
	}
	if dst.Type() != gocv.MatTypeCV8UC3 {
		return &AcquisitionError{Source: v.name, Err: fmt.Errorf("unexpected frame type %v", dst.Type())}
	}
	return nil
}

// Close releases the capture device.
func (v *VideoSource) Close() error {
	return v.capture.Close()
}
