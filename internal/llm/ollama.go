package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ollamaCompleter implements Completer against the Ollama /api/generate
// endpoint with streaming disabled.
type ollamaCompleter struct {
	host        string
	model       string
	maxTokens   int
	temperature float32
	client      *http.Client
}

// newOllama constructs a Completer backed by a local Ollama instance.
func newOllama(cfg *Config) Completer {
	host := cfg.BaseURL
	if host == "" {
		host = "http://localhost:11434"
	}
	return &ollamaCompleter{
		host:        host,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: 5 * time.Minute},
	}
}

// ollamaGenerateRequest is the JSON body sent to /api/generate.
type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ollamaGenerateResponse is the JSON body returned from /api/generate.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (c *ollamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	options := map[string]interface{}{
		"temperature": c.temperature,
	}
	if c.maxTokens > 0 {
		options["num_predict"] = c.maxTokens
	}

	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error bodies are not always JSON (a proxy 502 returns HTML), so
		// decoding is best-effort here.
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var result ollamaGenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Error != "" {
			msg = result.Error
		}
		return "", fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}

	return result.Response, nil
}
