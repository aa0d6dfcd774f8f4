package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voxlabs/vox-core/internal/engine"
	"github.com/voxlabs/vox-core/internal/journal"
)

// journalNotifier records pipeline commits in the transcript journal. The
// session row is written lazily on the first commit of each session.
type journalNotifier struct {
	store *journal.Store
	log   *slog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

func newJournalNotifier(store *journal.Store, log *slog.Logger) *journalNotifier {
	return &journalNotifier{
		store: store,
		log:   log.With(slog.String("component", "journal")),
		seen:  make(map[string]bool),
	}
}

func (j *journalNotifier) SurfaceMutated(string, string, string, int, int) {}

func (j *journalNotifier) MicAccessDenied(string, string) {}

func (j *journalNotifier) IndicatorChanged(engine.IndicatorState, string, engine.Position) {}

func (j *journalNotifier) TranscriptCommitted(sessionID, targetID, raw, committed string) {
	ctx := context.Background()

	j.mu.Lock()
	first := !j.seen[sessionID]
	j.seen[sessionID] = true
	j.mu.Unlock()

	if first {
		if err := j.store.AppendSession(ctx, sessionID, targetID, ""); err != nil {
			j.log.Warn("failed to record session", slog.String("error", err.Error()))
		}
	}
	err := j.store.AppendTranscript(ctx, journal.Entry{
		SessionID: sessionID,
		TargetID:  targetID,
		Raw:       raw,
		Committed: committed,
	})
	if err != nil {
		j.log.Warn("failed to record transcript", slog.String("error", err.Error()))
	}
}
