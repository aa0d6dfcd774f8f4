package recognition

import (
	"context"
	"sync"
)

// ScriptedOpener hands out streams a test (or demo) drives by hand.
type ScriptedOpener struct {
	mu      sync.Mutex
	streams []*ScriptedStream
	failure error
}

func NewScriptedOpener() *ScriptedOpener { return &ScriptedOpener{} }

// FailNext makes the next Open return err, modeling a start exception.
func (o *ScriptedOpener) FailNext(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failure = err
}

func (o *ScriptedOpener) Open(ctx context.Context, opts Options, cb Callbacks) (Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failure != nil {
		err := o.failure
		o.failure = nil
		return nil, err
	}
	st := &ScriptedStream{opts: opts, cb: cb}
	o.streams = append(o.streams, st)
	return st, nil
}

// Streams returns every stream opened so far, in order.
func (o *ScriptedOpener) Streams() []*ScriptedStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*ScriptedStream{}, o.streams...)
}

// Last returns the most recently opened stream, or nil.
func (o *ScriptedOpener) Last() *ScriptedStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.streams) == 0 {
		return nil
	}
	return o.streams[len(o.streams)-1]
}

// ScriptedStream delivers whatever events the test injects. Aborted streams
// drop further events, mirroring a detached handle.
type ScriptedStream struct {
	mu      sync.Mutex
	opts    Options
	cb      Callbacks
	aborted bool
}

func (s *ScriptedStream) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

func (s *ScriptedStream) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *ScriptedStream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

func (s *ScriptedStream) Start() {
	if cb := s.callbacks(); cb.Started != nil {
		cb.Started()
	}
}

func (s *ScriptedStream) Emit(chunks ...Chunk) {
	if cb := s.callbacks(); cb.Chunks != nil {
		cb.Chunks(chunks)
	}
}

func (s *ScriptedStream) Fail(kind ErrorKind) {
	if cb := s.callbacks(); cb.Failed != nil {
		cb.Failed(kind)
	}
}

func (s *ScriptedStream) End() {
	if cb := s.callbacks(); cb.Ended != nil {
		cb.Ended()
	}
}

func (s *ScriptedStream) callbacks() Callbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return Callbacks{}
	}
	return s.cb
}
