package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// GeminiClient calls a generateContent-style endpoint with a translate-only
// prompt and extracts the first candidate's text.
type GeminiClient struct {
	endpoint string
	client   *http.Client
}

func NewGeminiClient(endpoint string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *GeminiClient) Translate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" || req.APIKey == "" {
		return req.Text, nil
	}

	prompt := fmt.Sprintf("Translate from %s to %s. Return ONLY the translated text.\nOriginal: %q",
		langName(req.SourceLang), langName(req.TargetLang), req.Text)

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.endpoint, req.Model, req.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode translation response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("translation provider returned %s: %s", resp.Status, decoded.Error.Message)
	}
	if decoded.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("translation blocked: %s", decoded.PromptFeedback.BlockReason)
	}
	if len(decoded.Candidates) > 0 && len(decoded.Candidates[0].Content.Parts) > 0 {
		return strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text), nil
	}
	return "", fmt.Errorf("translation response contained no text")
}
