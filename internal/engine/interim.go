package engine

import (
	"strings"
	"unicode/utf8"
)

// interimSpan is the speculative text currently echoed into the surface.
// start is captured once at the first interim chunk of a phrase; length is
// tracked in runes through text. At most one span exists at a time.
type interimSpan struct {
	start  int
	text   string
	edited bool
}

// echoInterimLocked displays the cumulative interim text for the current
// phrase, replacing the previous echo in place. Once the user edits the
// surface the span is abandoned and further chunks are ignored. Caller
// holds e.mu.
func (e *Engine) echoInterimLocked(text string) {
	t := e.target
	if t == nil || !t.Focused() {
		return
	}
	if e.interim == nil {
		start, _ := t.Selection()
		e.interim = &interimSpan{start: start}
	}
	span := e.interim
	if span.edited || text == span.text {
		return
	}
	end := span.start + utf8.RuneCountInString(span.text)
	t.ReplaceRange(span.start, end, text)
	caret := span.start + utf8.RuneCountInString(text)
	t.SetSelection(caret, caret)
	span.text = text
}

// promoteInterimLocked turns an open untouched span into a pending job so a
// stream that died mid-phrase does not lose text. Caller holds e.mu.
func (e *Engine) promoteInterimLocked() {
	span := e.interim
	if span == nil {
		return
	}
	e.interim = nil
	if span.edited {
		return
	}
	text := strings.TrimSpace(span.text)
	if text == "" {
		e.eraseSpanLocked(span)
		return
	}
	e.enqueueLocked(job{
		text:      text,
		target:    e.target,
		sessionID: e.sessionID,
		supersede: true,
		start:     span.start,
		length:    utf8.RuneCountInString(span.text),
	})
}

// retractInterimLocked removes an untouched span from the surface, used on
// explicit stop and fatal errors. A user-edited span stays as plain text.
// Caller holds e.mu.
func (e *Engine) retractInterimLocked() {
	span := e.interim
	if span == nil {
		return
	}
	e.interim = nil
	if span.edited {
		return
	}
	e.eraseSpanLocked(span)
	e.metrics.add(e.ctx, e.metrics.retractions)
}

// eraseSpanLocked removes the span text. Focus is not required: retraction
// usually runs right after the surface lost focus.
func (e *Engine) eraseSpanLocked(span *interimSpan) {
	t := e.target
	if t == nil || span.text == "" || !t.Attached() {
		return
	}
	t.ReplaceRange(span.start, span.start+utf8.RuneCountInString(span.text), "")
	t.SetSelection(span.start, span.start)
}

// takeInterimLocked detaches the open span for a final chunk that confirms
// it. Returns nil when no span is open or the user edited over it. Caller
// holds e.mu.
func (e *Engine) takeInterimLocked() *interimSpan {
	span := e.interim
	e.interim = nil
	if span == nil || span.edited {
		return nil
	}
	return span
}
