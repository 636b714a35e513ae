package app

// EventType identifies different application events.
type EventType int

const (
	EventBackgroundCaptured EventType = iota
	EventBackgroundFailed
	EventBackgroundReset
	EventBackgroundInvalidated
	EventColorChanged
	EventTuningToggled
	EventSettingsSaved
	EventRecordingStarted
	EventRecordingStopped
)

func (e EventType) String() string {
	switch e {
	case EventBackgroundCaptured:
		return "background-captured"
	case EventBackgroundFailed:
		return "background-failed"
	case EventBackgroundReset:
		return "background-reset"
	case EventBackgroundInvalidated:
		return "background-invalidated"
	case EventColorChanged:
		return "color-changed"
	case EventTuningToggled:
		return "tuning-toggled"
	case EventSettingsSaved:
		return "settings-saved"
	case EventRecordingStarted:
		return "recording-started"
	case EventRecordingStopped:
		return "recording-stopped"
	default:
		return "unknown"
	}
}

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// On registers an event listener for the specified event type.
func (a *App) On(event EventType, listener EventListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners[event] = append(a.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (a *App) Emit(event EventType, data interface{}) {
	a.mu.Lock()
	listeners := a.listeners[event]
	a.mu.Unlock()

	for _, listener := range listeners {
		listener(data)
	}
}
