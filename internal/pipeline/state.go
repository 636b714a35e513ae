package pipeline

// State is the controller's processing mode.
type State int

const (
	// StateAwaitingBackground passes frames through until a background is
	// captured.
	StateAwaitingBackground State = iota
	// StateActive runs segmentation, refinement and compositing.
	StateActive
	// StateTuning exposes the masks for inspecting colour bounds.
	StateTuning
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAwaitingBackground:
		return "awaiting-background"
	case StateActive:
		return "active"
	case StateTuning:
		return "tuning"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
