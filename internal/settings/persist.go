package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// overrides is the on-disk state that must survive restarts: a fatal
// permission error turns dictation off until the user turns it back on.
type overrides struct {
	DictationActive bool `json:"dictation_active"`
}

// FileSaver persists the dictation toggle next to the journal data.
func FileSaver(path string, log *slog.Logger) Saver {
	return func(s Settings) {
		data, err := json.MarshalIndent(overrides{DictationActive: s.DictationActive}, "", "  ")
		if err != nil {
			log.Warn("failed to encode settings override", slog.String("error", err.Error()))
			return
		}
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Warn("failed to create settings dir", slog.String("error", err.Error()))
				return
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Warn("failed to persist settings override", slog.String("error", err.Error()))
		}
	}
}

// ApplyFileOverrides folds a persisted override into the store. A missing
// file is the normal first-run case.
func ApplyFileOverrides(s *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read settings override: %w", err)
	}
	var o overrides
	if err := json.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("decode settings override: %w", err)
	}
	s.Update(func(next *Settings) {
		next.DictationActive = next.DictationActive && o.DictationActive
	})
	return nil
}
