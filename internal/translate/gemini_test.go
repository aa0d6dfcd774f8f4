package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGeminiTranslateExtractsCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-1.5-flash-latest:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "k1" {
			t.Errorf("missing api key in query")
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" hallo welt "}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, time.Second)
	got, err := c.Translate(context.Background(), Request{
		Text:       "hello world",
		SourceLang: "en-US",
		TargetLang: "de",
		APIKey:     "k1",
		Model:      "gemini-1.5-flash-latest",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hallo welt" {
		t.Fatalf("got %q", got)
	}
}

func TestGeminiTranslateBlockedIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, time.Second)
	if _, err := c.Translate(context.Background(), Request{Text: "x", APIKey: "k", Model: "m"}); err == nil {
		t.Fatal("expected error for blocked translation")
	}
}

func TestGeminiTranslateHTTPErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, time.Second)
	_, err := c.Translate(context.Background(), Request{Text: "x", APIKey: "k", Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestGeminiTranslateEmptyTextShortCircuits(t *testing.T) {
	c := NewGeminiClient("http://unreachable.invalid", time.Second)
	got, err := c.Translate(context.Background(), Request{Text: "   ", APIKey: "k", Model: "m"})
	if err != nil || got != "   " {
		t.Fatalf("expected passthrough, got %q err=%v", got, err)
	}
}
