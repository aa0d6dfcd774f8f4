package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/voxlabs/vox-core/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T, cfg config.JournalConfig) *Store {
	t.Helper()
	s, err := Open(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndList(t *testing.T) {
	cfg := config.JournalConfig{
		Path:          filepath.Join(t.TempDir(), "journal.db"),
		RetentionMode: "persistent",
	}
	s := openTestStore(t, cfg)
	ctx := context.Background()

	if err := s.AppendSession(ctx, "sess-1", "field-1", "en-US"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	for i, text := range []string{"hello world", "second utterance"} {
		err := s.AppendTranscript(ctx, Entry{
			SessionID: "sess-1",
			TargetID:  "field-1",
			Raw:       text,
			Committed: text + " ",
			CreatedAt: time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("append transcript %d: %v", i, err)
		}
	}

	entries, err := s.ListSessionTranscripts(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Raw != "hello world" || entries[1].Raw != "second utterance" {
		t.Fatalf("unexpected order: %q, %q", entries[0].Raw, entries[1].Raw)
	}
	if entries[0].Committed != "hello world " {
		t.Fatalf("committed text lost: %q", entries[0].Committed)
	}
	if !entries[0].CreatedAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp did not round-trip: %v", entries[0].CreatedAt)
	}
}

func TestEphemeralKeepsNothing(t *testing.T) {
	s := openTestStore(t, config.JournalConfig{RetentionMode: "ephemeral"})
	ctx := context.Background()

	if err := s.AppendSession(ctx, "sess-1", "field-1", "en-US"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.AppendTranscript(ctx, Entry{SessionID: "sess-1", Raw: "x"}); err != nil {
		t.Fatalf("append transcript: %v", err)
	}
	entries, err := s.ListSessionTranscripts(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("ephemeral journal retained %d entries", len(entries))
	}
}

func TestPruneByAge(t *testing.T) {
	cfg := config.JournalConfig{
		Path:          filepath.Join(t.TempDir(), "journal.db"),
		RetentionMode: "persistent",
		RetentionDays: 7,
	}
	s := openTestStore(t, cfg)
	ctx := context.Background()

	now := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	if err := s.AppendSession(ctx, "old", "f", "en-US"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTranscript(ctx, Entry{SessionID: "old", Raw: "stale", CreatedAt: now.AddDate(0, 0, -30)}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTranscript(ctx, Entry{SessionID: "old", Raw: "fresh", CreatedAt: now.AddDate(0, 0, -1)}); err != nil {
		t.Fatal(err)
	}

	if err := s.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	entries, err := s.ListSessionTranscripts(ctx, "old", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Raw != "fresh" {
		t.Fatalf("prune kept wrong rows: %+v", entries)
	}
}
