package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxlabs/vox-core/internal/config"
	"github.com/voxlabs/vox-core/internal/recognition"
	"github.com/voxlabs/vox-core/internal/settings"
	"github.com/voxlabs/vox-core/internal/surface"
	"github.com/voxlabs/vox-core/internal/translate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu        sync.Mutex
	mutations int
	commits   []string
	denied    []string
	states    []IndicatorState
}

func (n *recordingNotifier) SurfaceMutated(_, _, _ string, _, _ int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mutations++
}

func (n *recordingNotifier) MicAccessDenied(location, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.denied = append(n.denied, location)
}

func (n *recordingNotifier) IndicatorChanged(state IndicatorState, _ string, _ Position) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

func (n *recordingNotifier) TranscriptCommitted(_, _, _, committed string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.commits = append(n.commits, committed)
}

func (n *recordingNotifier) commitCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.commits)
}

func (n *recordingNotifier) deniedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.denied)
}

type testEnv struct {
	engine   *Engine
	store    *settings.Store
	opener   *recognition.ScriptedOpener
	notifier *recordingNotifier
	field    *surface.ValueField
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Dictation.RestartDelayMS = 1
	cfg.Dictation.FocusDebounceMS = 1
	cfg.Dictation.RepositionDebounceMS = 1
	if mutate != nil {
		mutate(&cfg)
	}

	log := testLogger()
	store := settings.FromConfig(cfg, log)
	opener := recognition.NewScriptedOpener()
	notifier := &recordingNotifier{}
	eng := New(context.Background(), cfg.Dictation, store, opener, translate.NewMockTranslator(), notifier, log)
	if err := eng.Start(); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(eng.Close)

	field := surface.NewValueField("field-1")
	field.Focus()
	return &testEnv{engine: eng, store: store, opener: opener, notifier: notifier, field: field}
}

// bound binds the default field and walks the stream to LISTENING.
func (env *testEnv) bound(t *testing.T) *recognition.ScriptedStream {
	t.Helper()
	env.engine.Bind(env.field, "https://notes.example")
	stream := env.opener.Last()
	if stream == nil {
		t.Fatal("bind did not open a stream")
	}
	stream.Start()
	waitFor(t, "listening state", func() bool { return env.engine.State() == "listening" })
	return stream
}

func (e *Engine) pipelineIdle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue) == 0 && !e.inflight
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBindOpensStreamWithSessionLanguage(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Dictation.Language = "de-DE"
	})
	env.engine.Bind(env.field, "https://notes.example")

	stream := env.opener.Last()
	if stream == nil {
		t.Fatal("expected a stream")
	}
	opts := stream.Options()
	if opts.Language != "de-DE" || !opts.Continuous || !opts.InterimResults {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if got := env.engine.State(); got != "starting" {
		t.Fatalf("state = %q before start callback", got)
	}

	stream.Start()
	waitFor(t, "listening", func() bool { return env.engine.State() == "listening" })
	if env.engine.Indicator() != IndicatorListening {
		t.Fatalf("indicator = %q", env.engine.Indicator())
	}
}

func TestBindRefusesSecretAndDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	secret := surface.NewValueField("pw")
	secret.Focus()
	secret.SetSecret(true)
	env.engine.Bind(secret, "https://notes.example")
	if env.opener.Last() != nil {
		t.Fatal("bound to a secret field")
	}

	disabled := surface.NewValueField("off")
	disabled.Focus()
	disabled.SetDisabled(true)
	env.engine.Bind(disabled, "https://notes.example")
	if env.opener.Last() != nil {
		t.Fatal("bound to a disabled field")
	}
}

func TestBindSameTargetIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)
	env.bound(t)
	env.engine.Bind(env.field, "https://notes.example")
	if got := len(env.opener.Streams()); got != 1 {
		t.Fatalf("rebind opened %d streams", got)
	}
}

func TestRebindKeepsSingleEditObserver(t *testing.T) {
	env := newTestEnv(t, nil)
	for i := 0; i < 3; i++ {
		env.bound(t)
		env.engine.Unbind("focus-out")
		waitFor(t, "idle state", func() bool { return env.engine.State() == "idle" })
		env.field.Focus()
	}

	env.engine.mu.Lock()
	observed := len(env.engine.observed)
	env.engine.mu.Unlock()
	if observed != 1 {
		t.Fatalf("observer registered for %d targets, want 1", observed)
	}

	// Edit observation still works on the rebound target.
	env.bound(t)
	env.opener.Last().Emit(recognition.Chunk{Text: "half a phrase"})
	waitFor(t, "interim echoed", func() bool { return env.field.Text() == "half a phrase" })
	env.field.HostType("!")
	waitFor(t, "span abandoned", func() bool {
		env.engine.mu.Lock()
		defer env.engine.mu.Unlock()
		return env.engine.interim != nil && env.engine.interim.edited
	})
}

func TestFinalTranscriptAutoReplaceAndCommit(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "hello comma world", Final: true})

	waitFor(t, "commit", func() bool { return env.field.Text() == "hello , world " })
	if env.notifier.commitCount() != 1 {
		t.Fatalf("committed %d times", env.notifier.commitCount())
	}
	start, end := env.field.Selection()
	if start != len([]rune("hello , world ")) || start != end {
		t.Fatalf("caret not after commit: %d..%d", start, end)
	}
}

func TestClearAllCommandSkipsPipeline(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Translation.Enabled = true
		cfg.Translation.APIKey = "key"
	})
	env.engine.translator = &translate.MockTranslator{Fn: func(translate.Request) (string, error) {
		t.Error("translation ran for a formatting command")
		return "", nil
	}}
	env.field.HostSet("draft text here", 15, 15)
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "clear all", Final: true})

	waitFor(t, "cleared surface", func() bool { return env.field.Text() == "" })
	waitFor(t, "pipeline drain", env.engine.pipelineIdle)
	if env.notifier.commitCount() != 0 {
		t.Fatal("command phrase was committed as text")
	}
}

func TestDeleteWordCommand(t *testing.T) {
	env := newTestEnv(t, nil)
	env.field.HostSet("hello world", 11, 11)
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "delete word", Final: true})

	waitFor(t, "word deleted", func() bool { return env.field.Text() == "hello " })
}

func TestDeleteWordCommandRemovesSelection(t *testing.T) {
	env := newTestEnv(t, nil)
	env.field.HostSet("alpha beta gamma", 6, 10)
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "delete word", Final: true})

	waitFor(t, "selection deleted", func() bool { return env.field.Text() == "alpha  gamma" })
	if start, end := env.field.Selection(); start != 6 || end != 6 {
		t.Fatalf("selection = [%d,%d), want collapsed at 6", start, end)
	}
}

func TestInsertLiteralCommandNoSeparator(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "new paragraph", Final: true})

	waitFor(t, "literal inserted", func() bool { return env.field.Text() == "\n\n" })
}

func TestSingleFlightKeepsUtteranceOrder(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Translation.Enabled = true
		cfg.Translation.APIKey = "key"
		cfg.Translation.TargetLang = "en"
	})
	var mu sync.Mutex
	active := 0
	env.engine.translator = &translate.MockTranslator{Fn: func(req translate.Request) (string, error) {
		mu.Lock()
		active++
		if active > 1 {
			t.Error("two jobs in the translation step at once")
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return strings.ToUpper(req.Text), nil
	}}
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "first phrase", Final: true})
	stream.Emit(recognition.Chunk{Text: "second phrase", Final: true})

	waitFor(t, "both commits", func() bool { return env.notifier.commitCount() == 2 })
	if got := env.field.Text(); got != "FIRST PHRASE SECOND PHRASE " {
		t.Fatalf("commits interleaved or reordered: %q", got)
	}
}

func TestInterimEchoConfirmedOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "hel"})
	stream.Emit(recognition.Chunk{Text: "hello wor"})
	waitFor(t, "interim echo", func() bool { return env.field.Text() == "hello wor" })

	stream.Emit(recognition.Chunk{Text: "hello world", Final: true})
	waitFor(t, "confirmed", func() bool { return env.field.Text() == "hello world " })
	if strings.Count(env.field.Text(), "hello") != 1 {
		t.Fatalf("interim text duplicated: %q", env.field.Text())
	}
}

func TestFinalInBatchDiscardsBatchInterim(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	stream.Emit(
		recognition.Chunk{Text: "hello world", Final: true},
		recognition.Chunk{Text: "hel"},
	)

	waitFor(t, "commit", func() bool { return env.field.Text() == "hello world " })
	waitFor(t, "pipeline drain", env.engine.pipelineIdle)
	if env.field.Text() != "hello world " {
		t.Fatalf("batch interim leaked: %q", env.field.Text())
	}
}

func TestUserEditAbandonsInterim(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "hello"})
	waitFor(t, "interim echo", func() bool { return env.field.Text() == "hello" })

	env.field.HostType("!")

	// Further interim chunks must not clobber the edit.
	stream.Emit(recognition.Chunk{Text: "hello aga"})
	stream.Emit(recognition.Chunk{Text: "hello again", Final: true})

	waitFor(t, "fresh insert", func() bool { return strings.HasSuffix(env.field.Text(), "hello again ") })
	if !strings.HasPrefix(env.field.Text(), "hello!") {
		t.Fatalf("user edit clobbered: %q", env.field.Text())
	}
}

func TestStreamEndPromotesOpenInterim(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "half a phrase"})
	waitFor(t, "interim echo", func() bool { return env.field.Text() == "half a phrase" })

	stream.End()

	waitFor(t, "promoted commit", func() bool { return env.field.Text() == "half a phrase " })
	if env.notifier.commitCount() != 1 {
		t.Fatalf("promotion committed %d times", env.notifier.commitCount())
	}
}

func TestUnbindRetractsUntouchedInterim(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "speculative"})
	waitFor(t, "interim echo", func() bool { return env.field.Text() == "speculative" })

	env.engine.Unbind("user stop")

	if env.field.Text() != "" {
		t.Fatalf("interim left behind: %q", env.field.Text())
	}
	if !stream.Aborted() {
		t.Fatal("stream not aborted on unbind")
	}
	if env.engine.State() != "idle" {
		t.Fatalf("state = %q", env.engine.State())
	}
}

func TestRestartAfterNaturalEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	env.bound(t).End()

	waitFor(t, "restart", func() bool { return len(env.opener.Streams()) == 2 })
	env.opener.Last().Start()
	waitFor(t, "listening again", func() bool { return env.engine.State() == "listening" })
}

func TestNoRestartPastInactivityCeiling(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	base := time.Now()
	env.engine.mu.Lock()
	env.engine.clock = func() time.Time { return base.Add(31 * time.Second) }
	env.engine.mu.Unlock()

	stream.End()

	waitFor(t, "idle", func() bool { return env.engine.State() == "idle" })
	time.Sleep(20 * time.Millisecond)
	if got := len(env.opener.Streams()); got != 1 {
		t.Fatalf("restarted past the inactivity ceiling: %d streams", got)
	}
}

func TestStaleStreamCallbacksDiscarded(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.bound(t)
	first.End()
	waitFor(t, "restart", func() bool { return len(env.opener.Streams()) == 2 })
	env.opener.Last().Start()
	waitFor(t, "listening", func() bool { return env.engine.State() == "listening" })

	first.Emit(recognition.Chunk{Text: "ghost text", Final: true})

	time.Sleep(20 * time.Millisecond)
	waitFor(t, "pipeline drain", env.engine.pipelineIdle)
	if env.field.Text() != "" {
		t.Fatalf("stale stream mutated the surface: %q", env.field.Text())
	}
}

func TestNoSpeechErrorIgnored(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	stream.Fail(recognition.ErrNoSpeech)

	time.Sleep(10 * time.Millisecond)
	if env.engine.State() != "listening" {
		t.Fatalf("no-speech changed state to %q", env.engine.State())
	}
}

func TestFatalErrorDisablesDictationGlobally(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	stream.Fail(recognition.ErrPermissionDenied)

	waitFor(t, "dictation disabled", func() bool { return !env.store.Snapshot().DictationActive })
	if env.notifier.deniedCount() != 1 {
		t.Fatalf("mic denied notified %d times", env.notifier.deniedCount())
	}
	if env.engine.Indicator() != IndicatorNoMicAccess {
		t.Fatalf("indicator = %q", env.engine.Indicator())
	}

	// Any future bind is refused until the user re-enables dictation.
	other := surface.NewValueField("field-2")
	other.Focus()
	env.engine.Bind(other, "https://elsewhere.example")
	if got := len(env.opener.Streams()); got != 1 {
		t.Fatalf("bind succeeded while disabled: %d streams", got)
	}

	env.store.Update(func(s *settings.Settings) { s.DictationActive = true })
	env.engine.Bind(other, "https://elsewhere.example")
	waitFor(t, "rebind after re-enable", func() bool { return len(env.opener.Streams()) == 2 })
}

func TestRecoverableErrorShowsStickyThenRestarts(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Dictation.StickyDisplayMS = 20
	})
	stream := env.bound(t)

	stream.Fail(recognition.ErrNetwork)
	if env.engine.Indicator() != IndicatorRecognitionError {
		t.Fatalf("indicator = %q", env.engine.Indicator())
	}

	stream.End()
	waitFor(t, "restart", func() bool { return len(env.opener.Streams()) == 2 })
	env.opener.Last().Start()
	waitFor(t, "sticky cleared", func() bool { return env.engine.Indicator() == IndicatorListening })
}

func TestJobDroppedWhenTargetStopsBeingEditable(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	env.field.Blur()
	stream.Emit(recognition.Chunk{Text: "lost words", Final: true})

	waitFor(t, "pipeline drain", env.engine.pipelineIdle)
	if env.field.Text() != "" {
		t.Fatalf("dropped job still mutated surface: %q", env.field.Text())
	}
	if env.notifier.commitCount() != 0 {
		t.Fatal("dropped job reported a commit")
	}
}

func TestTranslationFailureFallsBackToOriginal(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Translation.Enabled = true
		cfg.Translation.APIKey = "key"
	})
	env.engine.translator = &translate.MockTranslator{Fn: func(translate.Request) (string, error) {
		return "", context.DeadlineExceeded
	}}
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "keep these words", Final: true})

	waitFor(t, "fallback commit", func() bool { return env.field.Text() == "keep these words " })
}

func TestTranslationEchoedInputKept(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Translation.Enabled = true
		cfg.Translation.APIKey = "key"
	})
	env.engine.translator = &translate.MockTranslator{Fn: func(req translate.Request) (string, error) {
		return req.Text, nil
	}}
	stream := env.bound(t)

	stream.Emit(recognition.Chunk{Text: "same either way", Final: true})

	waitFor(t, "commit", func() bool { return env.field.Text() == "same either way " })
}

func TestDisablingDictationUnbinds(t *testing.T) {
	env := newTestEnv(t, nil)
	stream := env.bound(t)

	env.store.Update(func(s *settings.Settings) { s.DictationActive = false })

	waitFor(t, "idle", func() bool { return env.engine.State() == "idle" })
	if !stream.Aborted() {
		t.Fatal("stream left running after disable")
	}
}

func TestLanguageChangeReopensStream(t *testing.T) {
	env := newTestEnv(t, nil)
	env.bound(t)

	env.store.Update(func(s *settings.Settings) { s.DictationLang = "ru-RU" })

	waitFor(t, "new stream", func() bool { return len(env.opener.Streams()) == 2 })
	if opts := env.opener.Last().Options(); opts.Language != "ru-RU" {
		t.Fatalf("new stream language = %q", opts.Language)
	}
}

func TestFocusFlowBindsAndBlacklists(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Rules.BlacklistSites = "banned.example"
	})

	env.engine.FocusIn(env.field, "https://banned.example/page")
	waitFor(t, "blacklist indicator", func() bool { return env.engine.Indicator() == IndicatorBlacklisted })
	if env.opener.Last() != nil {
		t.Fatal("stream opened on a blacklisted site")
	}

	env.engine.FocusIn(env.field, "https://fine.example/page")
	waitFor(t, "stream", func() bool { return env.opener.Last() != nil })
}

func TestFocusOnSecretFieldShowsPasswordIndicator(t *testing.T) {
	env := newTestEnv(t, nil)
	pw := surface.NewValueField("pw")
	pw.Focus()
	pw.SetSecret(true)

	env.engine.FocusIn(pw, "https://login.example")

	waitFor(t, "password indicator", func() bool { return env.engine.Indicator() == IndicatorPasswordField })
	if env.opener.Last() != nil {
		t.Fatal("stream opened on a secret field")
	}
}
