// Package engine is the dictation session core: the recognition-stream
// lifecycle state machine, the single-flight transcript pipeline, the
// interim echo and the status indicator. One Engine serves one document
// context; all its state lives behind a single mutex and stream callbacks
// are generation-tagged so a superseded stream can never mutate it.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/voxlabs/vox-core/internal/config"
	"github.com/voxlabs/vox-core/internal/recognition"
	"github.com/voxlabs/vox-core/internal/rules"
	"github.com/voxlabs/vox-core/internal/settings"
	"github.com/voxlabs/vox-core/internal/surface"
	"github.com/voxlabs/vox-core/internal/translate"
	"go.opentelemetry.io/otel/attribute"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateStarting
	stateListening
	stateEnding
	stateErrorFatal
)

func (s sessionState) String() string {
	switch s {
	case stateStarting:
		return "starting"
	case stateListening:
		return "listening"
	case stateEnding:
		return "ending"
	case stateErrorFatal:
		return "error-fatal"
	}
	return "idle"
}

type Engine struct {
	cfg        config.DictationConfig
	settings   *settings.Store
	opener     recognition.Opener
	translator translate.Translator
	notifier   Notifier
	log        *slog.Logger
	metrics    engineMetrics
	clock      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	focusDeb      func(func())
	repositionDeb func(func())

	mu           sync.Mutex
	state        sessionState
	target       surface.Target
	location     string
	sessionID    string
	stream       recognition.Stream
	gen          uint64 // identity tag for the current stream handle
	lastActivity time.Time
	restartTimer *time.Timer
	pendingFocus surface.Target
	pendingLoc   string
	observed     map[surface.Target]struct{} // targets carrying our edit observer

	streamLang    string
	streamInterim bool

	queue    []job
	inflight bool

	interim *interimSpan

	indicator   IndicatorState
	indTarget   surface.Target
	indSticky   bool
	stickyTimer *time.Timer
}

func New(parent context.Context, cfg config.DictationConfig, st *settings.Store, opener recognition.Opener, translator translate.Translator, notifier Notifier, logger *slog.Logger) *Engine {
	ctx, cancel := context.WithCancel(parent)
	if notifier == nil {
		notifier = NopNotifier{}
	}
	log := logger.With(slog.String("component", "engine"))
	return &Engine{
		cfg:           cfg,
		settings:      st,
		opener:        opener,
		translator:    translator,
		notifier:      notifier,
		log:           log,
		metrics:       newEngineMetrics(log),
		clock:         time.Now,
		ctx:           ctx,
		cancel:        cancel,
		focusDeb:      debounce.New(cfg.FocusDebounce()),
		repositionDeb: debounce.New(cfg.RepositionDebounce()),
		observed:      make(map[surface.Target]struct{}),
		indicator:     IndicatorIdle,
	}
}

// Start subscribes the engine to live settings changes.
func (e *Engine) Start() error {
	e.settings.Watch(e.applySettings)
	return nil
}

// Close aborts any live stream and waits for the pipeline to drain its
// in-flight job.
func (e *Engine) Close() {
	e.Unbind("shutdown")
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) Healthy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != stateErrorFatal
}

// FocusIn reports that an editable surface gained focus. Rapid focus churn
// collapses into the last target through the focus debounce window.
func (e *Engine) FocusIn(t surface.Target, location string) {
	e.mu.Lock()
	e.pendingFocus = t
	e.pendingLoc = location
	e.mu.Unlock()
	e.focusDeb(e.handleFocusChange)
}

// FocusOut reports that the bound surface lost focus.
func (e *Engine) FocusOut() {
	e.mu.Lock()
	e.pendingFocus = nil
	e.pendingLoc = ""
	e.mu.Unlock()
	e.focusDeb(e.handleFocusChange)
}

func (e *Engine) handleFocusChange() {
	e.mu.Lock()
	t := e.pendingFocus
	loc := e.pendingLoc
	e.mu.Unlock()

	if t == nil {
		e.Unbind("focus lost")
		return
	}

	snap := e.settings.Snapshot()
	if !snap.DictationActive {
		return
	}
	if rules.Blacklisted(loc, snap.Blacklist) {
		e.mu.Lock()
		e.setIndicatorLocked(IndicatorBlacklisted, t)
		e.mu.Unlock()
		return
	}
	if t.Secret() {
		e.mu.Lock()
		e.setIndicatorLocked(IndicatorPasswordField, t)
		e.mu.Unlock()
		return
	}
	e.Bind(t, loc)
}

// Bind attaches a session to target and opens a recognition stream. It is a
// no-op when dictation is disabled, the target is ineligible, or a session
// is already bound to the same target.
func (e *Engine) Bind(t surface.Target, location string) {
	snap := e.settings.Snapshot()

	e.mu.Lock()
	if !snap.DictationActive || !surface.Eligible(t) {
		e.mu.Unlock()
		return
	}
	if e.target == t && e.state != stateIdle && e.state != stateErrorFatal {
		e.mu.Unlock()
		return
	}
	if e.target != nil && e.target != t {
		e.retractInterimLocked()
		e.teardownLocked(true)
	}

	e.target = t
	e.location = location
	e.sessionID = uuid.NewString()
	e.lastActivity = e.clock()
	e.state = stateStarting
	if _, ok := e.observed[t]; !ok {
		t.ObserveUserEdits(e.userEditObserver(t))
		e.observed[t] = struct{}{}
	}
	e.log.Info("session bound",
		slog.String("session_id", e.sessionID),
		slog.String("target", t.ID()),
		slog.String("kind", t.Kind().String()),
		slog.String("language", snap.DictationLang))
	e.openStreamLocked(snap)
	e.mu.Unlock()
}

// openStreamLocked opens a fresh stream handle under a new generation.
// Caller holds e.mu.
func (e *Engine) openStreamLocked(snap settings.Settings) {
	e.gen++
	g := e.gen
	e.streamLang = snap.DictationLang
	e.streamInterim = snap.InterimResults
	opts := recognition.Options{
		Language:       snap.DictationLang,
		Continuous:     true,
		InterimResults: snap.InterimResults,
	}
	cb := recognition.Callbacks{
		Started: func() { e.onStart(g) },
		Chunks:  func(chunks []recognition.Chunk) { e.onChunks(g, chunks) },
		Failed:  func(kind recognition.ErrorKind) { e.onError(g, kind) },
		Ended:   func() { e.onEnd(g) },
	}
	stream, err := e.opener.Open(e.ctx, opts, cb)
	if err != nil {
		// Start failures follow the normal end-of-stream policy.
		e.log.Warn("stream open failed", slog.String("error", err.Error()))
		e.stream = nil
		e.finishStreamLocked(g)
		return
	}
	e.stream = stream
}

func (e *Engine) onStart(g uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g != e.gen {
		return
	}
	e.state = stateListening
	e.lastActivity = e.clock()
	e.setIndicatorLocked(IndicatorListening, e.target)
}

func (e *Engine) onChunks(g uint64, chunks []recognition.Chunk) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g != e.gen || e.state != stateListening {
		return
	}
	e.lastActivity = e.clock()

	var finalText, interimText string
	for _, c := range chunks {
		if c.Final {
			finalText += c.Text
		} else {
			interimText += c.Text
		}
	}

	// A final chunk in the batch finalizes the phrase; the batch's interim
	// content is already contained in it and is discarded.
	if finalText != "" {
		e.enqueueFinalLocked(finalText)
		return
	}
	if interimText != "" {
		snap := e.settings.Snapshot()
		if snap.InterimResults {
			e.echoInterimLocked(interimText)
		}
	}
}

func (e *Engine) onError(g uint64, kind recognition.ErrorKind) {
	e.mu.Lock()
	if g != e.gen {
		e.mu.Unlock()
		return
	}
	e.metrics.add(e.ctx, e.metrics.streamErrors, attribute.String("kind", string(kind)))

	if kind == recognition.ErrNoSpeech {
		// The stream keeps going; nothing to do.
		e.mu.Unlock()
		return
	}
	if kind.Fatal() {
		e.log.Error("fatal recognition error", slog.String("kind", string(kind)), slog.String("session_id", e.sessionID))
		location := e.location
		e.retractInterimLocked()
		e.teardownLocked(true)
		e.state = stateErrorFatal
		e.setIndicatorLocked(IndicatorNoMicAccess, e.target)
		e.target = nil
		e.location = ""
		e.mu.Unlock()

		e.notifier.MicAccessDenied(location, string(kind))
		// Dictation stays off until the user turns it back on.
		e.settings.DisableDictation()
		return
	}

	// Transient. Surface briefly; the collaborator's end event drives the
	// restart decision.
	e.log.Warn("recoverable recognition error", slog.String("kind", string(kind)))
	e.setIndicatorLocked(IndicatorRecognitionError, e.target)
	e.mu.Unlock()
}

func (e *Engine) onEnd(g uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishStreamLocked(g)
}

// finishStreamLocked handles natural stream termination: promote an open
// untouched interim span, then restart or settle to idle. Caller holds e.mu.
func (e *Engine) finishStreamLocked(g uint64) {
	if g != e.gen || e.state == stateIdle || e.state == stateErrorFatal {
		return
	}
	e.gen++ // invalidate the finished handle
	e.stream = nil

	// The stream ended mid-phrase; unconfirmed text must not be lost.
	e.promoteInterimLocked()

	snap := e.settings.Snapshot()
	elapsed := e.clock().Sub(e.lastActivity)
	if snap.DictationActive && surface.Live(e.target) && elapsed < e.cfg.RecognitionTimeout() {
		e.state = stateStarting
		next := e.gen
		if e.restartTimer != nil {
			e.restartTimer.Stop()
		}
		e.restartTimer = time.AfterFunc(e.cfg.RestartDelay(), func() { e.restart(next) })
		return
	}

	e.log.Info("session idle",
		slog.String("session_id", e.sessionID),
		slog.Duration("since_activity", elapsed))
	e.state = stateIdle
	e.setIndicatorLocked(IndicatorIdle, nil)
}

func (e *Engine) restart(g uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g != e.gen || e.state != stateStarting {
		return
	}
	snap := e.settings.Snapshot()
	if !snap.DictationActive || !surface.Live(e.target) {
		e.state = stateIdle
		e.setIndicatorLocked(IndicatorIdle, nil)
		return
	}
	e.metrics.add(e.ctx, e.metrics.restarts)
	e.openStreamLocked(snap)
}

// Unbind stops the session. Pending jobs keep draining; the open interim
// span, if untouched, is removed from the surface.
func (e *Engine) Unbind(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.target == nil && e.state == stateIdle {
		return
	}
	e.log.Info("session unbound", slog.String("session_id", e.sessionID), slog.String("reason", reason))
	e.retractInterimLocked()
	e.teardownLocked(true)
	if e.state != stateErrorFatal {
		e.state = stateIdle
	}
	e.target = nil
	e.location = ""
	// A terminal error stays on display until its window expires.
	if e.indicator != IndicatorNoMicAccess {
		e.setIndicatorLocked(IndicatorIdle, nil)
	}
}

// teardownLocked aborts the live stream and invalidates its callbacks.
// Caller holds e.mu.
func (e *Engine) teardownLocked(abort bool) {
	if e.restartTimer != nil {
		e.restartTimer.Stop()
		e.restartTimer = nil
	}
	if e.stream != nil && abort {
		e.stream.Abort()
	}
	e.stream = nil
	e.gen++
	e.interim = nil
}

// userEditObserver marks the open interim span as user-edited. Stale
// observers from previous targets check identity and bail.
func (e *Engine) userEditObserver(t surface.Target) func() {
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.target != t || e.interim == nil {
			return
		}
		if !e.interim.edited {
			e.log.Debug("interim span abandoned after user edit", slog.String("session_id", e.sessionID))
		}
		e.interim.edited = true
	}
}

// applySettings reacts to external configuration changes.
func (e *Engine) applySettings(next settings.Settings) {
	e.mu.Lock()
	active := e.state == stateStarting || e.state == stateListening
	target := e.target
	location := e.location
	fatal := e.state == stateErrorFatal

	switch {
	case !next.DictationActive && active:
		e.mu.Unlock()
		e.Unbind("dictation disabled")
	case next.DictationActive && fatal:
		// Explicit re-enable clears the fatal latch.
		e.state = stateIdle
		e.mu.Unlock()
		if target != nil && surface.Live(target) {
			e.Bind(target, location)
		}
	case next.DictationActive && active &&
		(next.DictationLang != e.streamLang || next.InterimResults != e.streamInterim):
		// Language or mode changes need a fresh stream.
		e.teardownLocked(true)
		e.state = stateStarting
		e.openStreamLocked(next)
		e.mu.Unlock()
	case next.DictationActive && !active && target != nil && surface.Live(target):
		e.mu.Unlock()
		e.Bind(target, location)
	default:
		e.mu.Unlock()
	}
}

// State exposes the session state name for diagnostics.
func (e *Engine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.String()
}
