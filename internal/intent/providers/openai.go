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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures the fallback provider.
type OpenAIConfig struct {
	Model   string
	APIKey  string
	BaseURL string // override for tests
	Timeout time.Duration
}

// OpenAI speaks the chat-completions API with response_format json_object,
// which forces a bare JSON object back. It is the safety net when the
// primary is exhausted or failing.
type OpenAI struct {
	cfg  OpenAIConfig
	http *http.Client
	log  logx.Logger
}

func NewOpenAI(cfg OpenAIConfig, log logx.Logger) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &OpenAI{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Classify(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":           o.cfg.Model,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai status %d: %s", resp.StatusCode, snippet(data))
	}

	content := gjson.GetBytes(data, "choices.0.message.content").String()
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("openai empty completion")
	}
	return content, nil
}
