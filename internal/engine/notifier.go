package engine

// Notifier receives the engine's outbound notifications. Implementations
// must not call back into the engine; they run while engine state is held.
type Notifier interface {
	SurfaceMutated(sessionID, targetID, text string, selStart, selEnd int)
	MicAccessDenied(location, kind string)
	IndicatorChanged(state IndicatorState, targetID string, pos Position)
	TranscriptCommitted(sessionID, targetID, raw, committed string)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) SurfaceMutated(string, string, string, int, int)    {}
func (NopNotifier) MicAccessDenied(string, string)                     {}
func (NopNotifier) IndicatorChanged(IndicatorState, string, Position)  {}
func (NopNotifier) TranscriptCommitted(string, string, string, string) {}

// MultiNotifier fans a notification out to several observers.
type MultiNotifier []Notifier

func (m MultiNotifier) SurfaceMutated(sessionID, targetID, text string, selStart, selEnd int) {
	for _, n := range m {
		n.SurfaceMutated(sessionID, targetID, text, selStart, selEnd)
	}
}

func (m MultiNotifier) MicAccessDenied(location, kind string) {
	for _, n := range m {
		n.MicAccessDenied(location, kind)
	}
}

func (m MultiNotifier) IndicatorChanged(state IndicatorState, targetID string, pos Position) {
	for _, n := range m {
		n.IndicatorChanged(state, targetID, pos)
	}
}

func (m MultiNotifier) TranscriptCommitted(sessionID, targetID, raw, committed string) {
	for _, n := range m {
		n.TranscriptCommitted(sessionID, targetID, raw, committed)
	}
}
