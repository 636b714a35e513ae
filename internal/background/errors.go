package background

import "fmt"

// CaptureError reports a capture that could not collect its samples. The
// store is unchanged when one is returned.
type CaptureError struct {
	Requested int
	Collected int
	Err       error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("background capture failed after %d/%d samples: %v", e.Collected, e.Requested, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
