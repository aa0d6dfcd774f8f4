// Package settings holds the live dictation settings snapshot. The engine
// reads it before every decision; the surrounding runtime feeds it changes
// from the external configuration collaborator. The single write path back
// is DisableDictation, used when a fatal permission error must stick.
package settings

import (
	"log/slog"
	"sync"

	"github.com/voxlabs/vox-core/internal/config"
	"github.com/voxlabs/vox-core/internal/rules"
)

// Settings is one immutable snapshot of everything the engine consults.
type Settings struct {
	DictationActive        bool
	DictationLang          string
	InterimResults         bool
	DisableAutoPunctuation bool

	TranslationActive bool
	TranslationLang   string
	APIKey            string
	Model             string

	AutoReplace []rules.Rule
	Commands    rules.CommandTable
	Blacklist   []string
}

// Saver persists a snapshot back to the external collaborator.
type Saver func(Settings)

// Store serializes snapshot reads, updates and watcher notification.
type Store struct {
	mu       sync.Mutex
	current  Settings
	watchers []func(Settings)
	saver    Saver
	log      *slog.Logger
}

// FromConfig builds the initial snapshot. An invalid command table falls
// back to the defaults rather than failing startup.
func FromConfig(cfg config.Config, log *slog.Logger) *Store {
	commands, err := rules.ParseCommands(cfg.Rules.Commands)
	if err != nil {
		log.Warn("invalid command table, using defaults", slog.String("error", err.Error()))
		commands, _ = rules.ParseCommands(config.DefaultCommands())
	}
	return &Store{
		current: Settings{
			DictationActive:        cfg.Dictation.Enabled,
			DictationLang:          cfg.Dictation.Language,
			InterimResults:         cfg.Dictation.InterimResults,
			DisableAutoPunctuation: cfg.Dictation.DisableAutoPunctuation,
			TranslationActive:      cfg.Translation.Enabled,
			TranslationLang:        cfg.Translation.TargetLang,
			APIKey:                 cfg.Translation.APIKey,
			Model:                  cfg.Translation.ModelInUse(),
			AutoReplace:            rules.ParseAutoReplace(cfg.Rules.AutoReplace),
			Commands:               commands,
			Blacklist:              rules.ParseBlacklist(cfg.Rules.BlacklistSites),
		},
		log: log.With(slog.String("component", "settings")),
	}
}

// SetSaver installs the persistence write path.
func (s *Store) SetSaver(saver Saver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saver = saver
}

// Snapshot returns the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Watch registers fn for every subsequent change.
func (s *Store) Watch(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Update applies mutate to a copy of the snapshot and notifies watchers.
func (s *Store) Update(mutate func(*Settings)) {
	s.mu.Lock()
	next := s.current
	mutate(&next)
	s.current = next
	watchers := append([]func(Settings){}, s.watchers...)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(next)
	}
}

// DisableDictation turns dictation off and persists the change. Called on
// fatal permission errors; dictation stays off until re-enabled explicitly.
func (s *Store) DisableDictation() {
	s.mu.Lock()
	if !s.current.DictationActive {
		s.mu.Unlock()
		return
	}
	s.current.DictationActive = false
	next := s.current
	watchers := append([]func(Settings){}, s.watchers...)
	saver := s.saver
	s.mu.Unlock()

	s.log.Info("dictation disabled after fatal recognition error")
	if saver != nil {
		saver(next)
	}
	for _, fn := range watchers {
		fn(next)
	}
}
