// Package recognition defines the contract with the external speech
// recognition engine. The engine is a black box: this package only carries
// transcript chunks and lifecycle events across it.
package recognition

import "context"

// ErrorKind classifies stream errors the way the collaborator reports them.
type ErrorKind string

const (
	ErrNoSpeech           ErrorKind = "no-speech"
	ErrPermissionDenied   ErrorKind = "permission-denied"
	ErrServiceUnavailable ErrorKind = "service-unavailable"
	ErrAudioCapture       ErrorKind = "audio-capture"
	ErrNetwork            ErrorKind = "network"
	ErrAborted            ErrorKind = "aborted"
	ErrOther              ErrorKind = "other"
)

// Fatal reports whether the kind terminates dictation until the user
// re-enables it explicitly.
func (k ErrorKind) Fatal() bool {
	return k == ErrPermissionDenied || k == ErrServiceUnavailable
}

// Chunk is one stream result. Index orders chunks within the stream; Final
// marks confirmed text, everything else is speculative.
type Chunk struct {
	Index int
	Text  string
	Final bool
}

// Options configure a stream at open time.
type Options struct {
	Language       string
	Continuous     bool
	InterimResults bool
}

// Callbacks receive stream events. Implementations of Opener must deliver
// them asynchronously, never from inside Open, and must stop delivering
// after Abort returns.
type Callbacks struct {
	Started func()
	Chunks  func([]Chunk)
	Failed  func(ErrorKind)
	Ended   func()
}

// Stream is a live handle to the recognition engine.
type Stream interface {
	Abort()
}

// Opener creates recognition streams.
type Opener interface {
	Open(ctx context.Context, opts Options, cb Callbacks) (Stream, error)
}
