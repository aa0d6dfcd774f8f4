// Package translate wraps the external translation provider. Failures are
// reported as errors and never abort the dictation pipeline; callers keep
// the pre-translation text.
package translate

import (
	"context"
	"strings"
)

// Request describes one translation call.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
	APIKey     string
	Model      string
}

// Translator is a pluggable translation backend.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// langName maps a BCP-47 tag to the language name used in the prompt.
func langName(code string) string {
	lang := strings.ToLower(strings.SplitN(code, "-", 2)[0])
	switch lang {
	case "ru":
		return "Russian"
	case "en":
		return "English"
	case "de":
		return "German"
	case "fr":
		return "French"
	case "es":
		return "Spanish"
	default:
		return code
	}
}
