// Package providers implements the HTTP classification backends used by the
// intent resolver: Gemini (metered primary) and an OpenAI-compatible
// fallback with strict JSON output.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	logx "manvibot/pkg/logx"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiConfig configures the primary provider.
type GeminiConfig struct {
	Model   string
	APIKey  string
	BaseURL string // override for tests
	Timeout time.Duration
}

// Gemini calls the Generative Language API with a JSON response MIME type.
// The model still occasionally wraps the object in prose, which is why the
// resolver parses permissively.
type Gemini struct {
	cfg  GeminiConfig
	http *http.Client
	log  logx.Logger
}

func NewGemini(cfg GeminiConfig, log logx.Logger) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gemini{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Classify(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gemini read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("gemini rate limited: %s", snippet(data))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, snippet(data))
	}

	text := gjson.GetBytes(data, "candidates.0.content.parts.0.text").String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini empty candidate")
	}
	return text, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
