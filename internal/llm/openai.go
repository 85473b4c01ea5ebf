package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// openaiCompleter implements Completer against the OpenAI (or Azure OpenAI)
// chat completions REST API.
type openaiCompleter struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
	azure       bool
	apiVersion  string
	client      *http.Client
}

// newOpenAI constructs a Completer backed by the OpenAI API.
func newOpenAI(cfg *Config) Completer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &openaiCompleter{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: 2 * time.Minute},
	}
}

// newAzure constructs a Completer backed by Azure OpenAI Service. The model
// field carries the deployment name.
func newAzure(cfg *Config) Completer {
	return &openaiCompleter{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		azure:       true,
		apiVersion:  cfg.APIVersion,
		client:      &http.Client{Timeout: 2 * time.Minute},
	}
}

// chatMessage is one message in the chat completions request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON body sent to the chat completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

// chatResponse is the JSON body returned from the chat completions endpoint.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *openaiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	if c.azure {
		url = c.baseURL + "/deployments/" + c.model + "/chat/completions?api-version=" + c.apiVersion
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.azure {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error bodies are not always JSON (a proxy 502 returns HTML), so
		// decoding is best-effort here.
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var result chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Error != nil {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("%w: %s", ErrUnavailable, msg)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("llm: response contained no choices")
	}

	return result.Choices[0].Message.Content, nil
}
