package translate

import (
	"context"
	"time"
)

// MockTranslator returns a deterministic transformation after an optional
// delay. The delay lets tests hold a pipeline job in its network wait.
type MockTranslator struct {
	Fn    func(Request) (string, error)
	Delay time.Duration
}

func NewMockTranslator() *MockTranslator { return &MockTranslator{} }

func (m *MockTranslator) Translate(ctx context.Context, req Request) (string, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Fn != nil {
		return m.Fn(req)
	}
	return "[" + langName(req.TargetLang) + "] " + req.Text, nil
}
