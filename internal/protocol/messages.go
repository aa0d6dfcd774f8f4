package protocol

import "time"

// HostFocus announces that an editable region gained focus on the host page.
// The descriptor is a snapshot; subsequent edits arrive as HostEdit messages.
type HostFocus struct {
	TargetID  string    `json:"target_id"`
	Kind      string    `json:"kind"` // value | rich
	Secret    bool      `json:"secret"`
	ReadOnly  bool      `json:"read_only"`
	Disabled  bool      `json:"disabled"`
	Text      string    `json:"text"`
	SelStart  int       `json:"sel_start"`
	SelEnd    int       `json:"sel_end"`
	Rect      Rect      `json:"rect"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// HostBlur announces that the focused region lost focus.
type HostBlur struct {
	TargetID  string    `json:"target_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HostEdit carries a user-originated mutation of the focused region.
type HostEdit struct {
	TargetID  string    `json:"target_id"`
	Text      string    `json:"text"`
	SelStart  int       `json:"sel_start"`
	SelEnd    int       `json:"sel_end"`
	Timestamp time.Time `json:"timestamp"`
}

// HostViewport reports scroll/resize geometry changes for indicator layout.
type HostViewport struct {
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Rect      Rect      `json:"rect"` // bounds of the focused target
	Timestamp time.Time `json:"timestamp"`
}

type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// SurfaceMutation is published after every committed engine edit so host-page
// observers can treat it as a normal input event.
type SurfaceMutation struct {
	SessionID string    `json:"session_id"`
	TargetID  string    `json:"target_id"`
	Text      string    `json:"text"`
	SelStart  int       `json:"sel_start"`
	SelEnd    int       `json:"sel_end"`
	Timestamp time.Time `json:"timestamp"`
}

// MicAccessDenied is published once per fatal permission error.
type MicAccessDenied struct {
	Location  string    `json:"location"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// IndicatorUpdate mirrors the indicator state machine for any UI chrome.
type IndicatorUpdate struct {
	State     string    `json:"state"`
	TargetID  string    `json:"target_id,omitempty"`
	Visible   bool      `json:"visible"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptCommitted records a pipeline commit for journaling and observers.
type TranscriptCommitted struct {
	SessionID string    `json:"session_id"`
	TargetID  string    `json:"target_id"`
	Raw       string    `json:"raw"`
	Committed string    `json:"committed"`
	Timestamp time.Time `json:"timestamp"`
}

// RecognitionOpen asks a remote recognition engine to open a stream.
type RecognitionOpen struct {
	StreamID       string    `json:"stream_id"`
	Language       string    `json:"language"`
	Continuous     bool      `json:"continuous"`
	InterimResults bool      `json:"interim_results"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecognitionAbort tears a remote stream down.
type RecognitionAbort struct {
	StreamID  string    `json:"stream_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RecognitionEvent is one callback delivered by a remote recognition engine.
// Type is one of start|chunk|error|end.
type RecognitionEvent struct {
	StreamID  string             `json:"stream_id"`
	Type      string             `json:"type"`
	Chunks    []RecognitionChunk `json:"chunks,omitempty"`
	ErrorKind string             `json:"error_kind,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

type RecognitionChunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

const (
	SubjectHostFocus    = "vox.host.focus"
	SubjectHostBlur     = "vox.host.blur"
	SubjectHostEdit     = "vox.host.edit"
	SubjectHostViewport = "vox.host.viewport"

	SubjectSurfaceMutated      = "vox.surface.mutated"
	SubjectMicDenied           = "vox.mic.denied"
	SubjectIndicatorState      = "vox.indicator.state"
	SubjectTranscriptCommitted = "vox.transcript.committed"

	SubjectRecognitionOpen        = "vox.recognition.open"
	SubjectRecognitionAbort       = "vox.recognition.abort"
	SubjectRecognitionEventPrefix = "vox.recognition.events"
)
