package engine

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/voxlabs/vox-core/internal/rules"
	"github.com/voxlabs/vox-core/internal/surface"
	"github.com/voxlabs/vox-core/internal/translate"
)

// separator appended after every committed transcript so consecutive
// utterances do not run together.
const separator = " "

// job is one queued unit of pipeline work derived from a final transcript.
// When it supersedes an interim span, start/length pin the exact range to
// replace; offsets are captured at enqueue time, never searched for.
type job struct {
	text      string
	target    surface.Target
	sessionID string
	supersede bool
	start     int
	length    int
}

// enqueueFinalLocked builds a job from the batch's final text, capturing the
// open interim span when it confirms one. Caller holds e.mu.
func (e *Engine) enqueueFinalLocked(raw string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}
	j := job{text: text, target: e.target, sessionID: e.sessionID}
	if span := e.takeInterimLocked(); span != nil {
		j.supersede = true
		j.start = span.start
		j.length = utf8.RuneCountInString(span.text)
	}
	e.enqueueLocked(j)
}

// enqueueLocked appends to the FIFO queue and wakes the worker. At most one
// worker drains the queue, which is what enforces single-flight. Caller
// holds e.mu.
func (e *Engine) enqueueLocked(j job) {
	e.queue = append(e.queue, j)
	if e.inflight {
		return
	}
	e.inflight = true
	e.wg.Add(1)
	go e.drain()
}

func (e *Engine) drain() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.inflight = false
			e.mu.Unlock()
			return
		}
		j := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.process(j)
	}
}

// process runs one job through command detection, substitution, optional
// translation and commit. Only the translation wait runs unlocked.
func (e *Engine) process(j job) {
	snap := e.settings.Snapshot()

	e.mu.Lock()
	if !surface.Live(j.target) {
		e.log.Info("job dropped, target no longer editable",
			slog.String("session_id", j.sessionID),
			slog.String("text", j.text))
		e.metrics.add(e.ctx, e.metrics.drops)
		e.setIndicatorLocked(e.derivedIndicatorLocked(), e.target)
		e.mu.Unlock()
		return
	}
	e.setIndicatorLocked(IndicatorProcessing, j.target)

	// A confirmed span is removed first so neither a command mutation nor a
	// fresh insert can double its text.
	if j.supersede {
		j.target.ReplaceRange(j.start, j.start+j.length, "")
		j.target.SetSelection(j.start, j.start)
	}

	if cmd, ok := snap.Commands.Match(j.text); ok {
		e.runCommandLocked(j, cmd)
		e.finishJobLocked(j)
		e.mu.Unlock()
		return
	}

	text := rules.ApplyAutoReplace(j.text, snap.AutoReplace)

	if snap.TranslationActive && snap.APIKey != "" && text != "" {
		e.setIndicatorLocked(IndicatorTranslating, j.target)
		translator := e.translator
		e.mu.Unlock()

		out, err := translator.Translate(e.ctx, translate.Request{
			Text:       text,
			SourceLang: snap.DictationLang,
			TargetLang: snap.TranslationLang,
			APIKey:     snap.APIKey,
			Model:      snap.Model,
		})

		e.mu.Lock()
		if err != nil {
			e.log.Warn("translation failed, committing original text", slog.String("error", err.Error()))
			e.metrics.add(e.ctx, e.metrics.translateErr)
		} else if out != "" && out != text {
			text = out
		}
		if !surface.Live(j.target) {
			e.log.Info("job dropped after translation, target no longer editable",
				slog.String("session_id", j.sessionID))
			e.metrics.add(e.ctx, e.metrics.drops)
			e.setIndicatorLocked(e.derivedIndicatorLocked(), e.target)
			e.mu.Unlock()
			return
		}
	}

	e.commitLocked(j, text)
	e.finishJobLocked(j)
	e.mu.Unlock()
}

// commitLocked inserts the processed text at the job's anchor. The span was
// already removed, so both paths insert at the current selection.
func (e *Engine) commitLocked(j job, text string) {
	start, end := j.target.Selection()
	committed := text + separator
	j.target.ReplaceRange(start, end, committed)
	caret := start + utf8.RuneCountInString(committed)
	j.target.SetSelection(caret, caret)

	j.target.NotifyInput()
	e.notifier.SurfaceMutated(j.sessionID, j.target.ID(), committed, start, caret)
	e.notifier.TranscriptCommitted(j.sessionID, j.target.ID(), j.text, committed)
	e.metrics.add(e.ctx, e.metrics.commits)
	e.log.Debug("transcript committed",
		slog.String("session_id", j.sessionID),
		slog.Int("chars", utf8.RuneCountInString(committed)))
}

// runCommandLocked executes a formatting command instead of inserting the
// phrase. No substitution or translation applies to commands.
func (e *Engine) runCommandLocked(j job, cmd rules.Command) {
	t := j.target
	switch cmd.Action {
	case rules.ActionDeleteWord:
		deleteLastWord(t)
	case rules.ActionClearAll:
		t.ReplaceRange(0, t.Len(), "")
		t.SetSelection(0, 0)
	case rules.ActionInsertLiteral:
		start, end := t.Selection()
		t.ReplaceRange(start, end, cmd.Literal)
		caret := start + utf8.RuneCountInString(cmd.Literal)
		t.SetSelection(caret, caret)
	}
	t.NotifyInput()
	selStart, selEnd := t.Selection()
	e.notifier.SurfaceMutated(j.sessionID, t.ID(), "", selStart, selEnd)
	e.log.Debug("formatting command executed", slog.String("phrase", j.text))
}

// finishJobLocked restores the indicator after a job. Caller holds e.mu.
func (e *Engine) finishJobLocked(j job) {
	if e.target == j.target && e.state == stateListening {
		e.setIndicatorLocked(IndicatorListening, j.target)
		return
	}
	e.setIndicatorLocked(e.derivedIndicatorLocked(), e.target)
}

// deleteLastWord removes the active selection if one exists, otherwise the
// word before the cursor plus surrounding whitespace.
func deleteLastWord(t surface.Target) {
	start, end := t.Selection()
	if start != end {
		t.ReplaceRange(start, end, "")
		t.SetSelection(start, start)
		return
	}
	text := []rune(t.Text())
	if start > len(text) {
		start = len(text)
	}
	i := start
	for i > 0 && unicode.IsSpace(text[i-1]) {
		i--
	}
	for i > 0 && !unicode.IsSpace(text[i-1]) {
		i--
	}
	if i == start {
		return
	}
	t.ReplaceRange(i, start, "")
	t.SetSelection(i, i)
}
