package colorrange

import (
	"fmt"
	"strings"
)

// UnknownPresetError is returned by FromPreset for names outside Presets().
type UnknownPresetError struct {
	Name string
}

func (e *UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown color preset %q (available: %s)", e.Name, strings.Join(Presets(), ", "))
}

// InvalidBoundsError reports a malformed bound pair. Index is the offending
// input pair, or -1 when the problem concerns the set as a whole.
type InvalidBoundsError struct {
	Index  int
	Reason string
}

func (e *InvalidBoundsError) Error() string {
	if e.Index < 0 {
		return "invalid color bounds: " + e.Reason
	}
	return fmt.Sprintf("invalid color bounds (pair %d): %s", e.Index, e.Reason)
}
