package settings

import (
	"io"
	"log/slog"
	"testing"

	"github.com/voxlabs/vox-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFromConfigParsesTables(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.BlacklistSites = "bank.example\nmail.internal"
	store := FromConfig(cfg, newLogger())

	snap := store.Snapshot()
	if !snap.DictationActive {
		t.Fatal("expected dictation active by default")
	}
	if len(snap.AutoReplace) == 0 {
		t.Fatal("expected default auto-replace rules parsed")
	}
	if _, ok := snap.Commands.Match("clear all"); !ok {
		t.Fatal("expected default commands parsed")
	}
	if len(snap.Blacklist) != 2 {
		t.Fatalf("expected 2 blacklist patterns, got %v", snap.Blacklist)
	}
}

func TestUpdateNotifiesWatchers(t *testing.T) {
	store := FromConfig(config.Default(), newLogger())

	var seen []string
	store.Watch(func(s Settings) { seen = append(seen, s.DictationLang) })

	store.Update(func(s *Settings) { s.DictationLang = "de-DE" })
	if store.Snapshot().DictationLang != "de-DE" {
		t.Fatalf("update not applied: %s", store.Snapshot().DictationLang)
	}
	if len(seen) != 1 || seen[0] != "de-DE" {
		t.Fatalf("watcher not notified: %v", seen)
	}
}

func TestDisableDictationPersistsOnce(t *testing.T) {
	store := FromConfig(config.Default(), newLogger())

	var saved int
	store.SetSaver(func(s Settings) {
		if s.DictationActive {
			t.Error("saved snapshot should have dictation off")
		}
		saved++
	})

	store.DisableDictation()
	store.DisableDictation() // already off, must be a no-op
	if saved != 1 {
		t.Fatalf("expected exactly one save, got %d", saved)
	}
	if store.Snapshot().DictationActive {
		t.Fatal("dictation should stay disabled")
	}
}
