package engine

import (
	"time"

	"github.com/voxlabs/vox-core/internal/surface"
)

// IndicatorState is the user-visible status derived from session and
// pipeline transitions. It is never a source of truth.
type IndicatorState string

const (
	IndicatorIdle             IndicatorState = "idle"
	IndicatorListening        IndicatorState = "listening"
	IndicatorProcessing       IndicatorState = "processing"
	IndicatorTranslating      IndicatorState = "translating"
	IndicatorBlacklisted      IndicatorState = "blacklisted"
	IndicatorNoMicAccess      IndicatorState = "no-mic-access"
	IndicatorPasswordField    IndicatorState = "password-field"
	IndicatorRecognitionError IndicatorState = "recognition-error"
)

// sticky states are informational. They auto-clear after the display window
// and suppress the normal listening display until cleared.
func (s IndicatorState) sticky() bool {
	switch s {
	case IndicatorBlacklisted, IndicatorNoMicAccess, IndicatorPasswordField, IndicatorRecognitionError:
		return true
	}
	return false
}

// Position is where the indicator renders relative to the viewport.
type Position struct {
	X       int
	Y       int
	Visible bool
}

// positionFor anchors the indicator to the top-right corner of the target,
// hidden whenever the target is gone or off screen.
func positionFor(t surface.Target) Position {
	if t == nil || !t.Attached() || !t.Visible() {
		return Position{}
	}
	b := t.Bounds()
	return Position{X: b.X + b.W - 24, Y: b.Y - 28, Visible: true}
}

// setIndicatorLocked applies a transition. Normal states never override a
// live sticky state except another sticky state. Caller holds e.mu.
func (e *Engine) setIndicatorLocked(state IndicatorState, t surface.Target) {
	if e.indSticky && !state.sticky() && state != IndicatorIdle {
		return
	}
	if state == e.indicator && !state.sticky() && t == e.indTarget {
		return
	}
	if e.stickyTimer != nil {
		e.stickyTimer.Stop()
		e.stickyTimer = nil
	}
	e.indSticky = state.sticky()
	if e.indSticky {
		e.stickyTimer = time.AfterFunc(e.cfg.StickyDisplay(), func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if !e.indSticky {
				return
			}
			e.indSticky = false
			e.stickyTimer = nil
			e.publishIndicatorLocked(e.derivedIndicatorLocked(), e.target)
		})
	}
	e.publishIndicatorLocked(state, t)
}

// derivedIndicatorLocked recomputes the baseline state from the session.
func (e *Engine) derivedIndicatorLocked() IndicatorState {
	if e.state == stateListening {
		return IndicatorListening
	}
	return IndicatorIdle
}

func (e *Engine) publishIndicatorLocked(state IndicatorState, t surface.Target) {
	e.indicator = state
	e.indTarget = t
	pos := positionFor(t)
	if state == IndicatorIdle {
		pos = Position{}
	}
	targetID := ""
	if t != nil {
		targetID = t.ID()
	}
	e.notifier.IndicatorChanged(state, targetID, pos)
}

// Reposition recomputes the indicator anchor after scroll or resize. The
// host debounces bursts through the configured reposition window.
func (e *Engine) Reposition() {
	e.repositionDeb(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.indicator == IndicatorIdle {
			return
		}
		e.publishIndicatorLocked(e.indicator, e.indTarget)
	})
}

// Indicator returns the current state. Test and diagnostics hook.
func (e *Engine) Indicator() IndicatorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.indicator
}
