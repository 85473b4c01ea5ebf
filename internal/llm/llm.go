// Package llm defines the Completer interface and factory for selecting and
// constructing completion model backends at runtime. Supported backends:
// Ollama, OpenAI, Azure OpenAI. All backends speak plain HTTP.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the completion backend cannot be reached
// or rejects the request. Callers can detect it with errors.Is to
// distinguish backend outages from malformed prompts.
var ErrUnavailable = errors.New("llm: backend unavailable")

// Backend enumerates the supported completion providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
)

// Config holds completion-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which completion provider to use.
	Backend Backend

	// Model is the model name or deployment ID (e.g. "gpt-4o-mini", "llama3").
	Model string

	// BaseURL overrides the default API endpoint (required for Azure).
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	// Unused for Ollama.
	APIKey string

	// APIVersion is the Azure OpenAI REST API version (Azure only),
	// e.g. "2024-02-01".
	APIVersion string

	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Completer produces one completion for one prompt. Implementations must be
// safe to call from multiple goroutines.
type Completer interface {
	// Complete sends the prompt and returns the model's full response text.
	Complete(ctx context.Context, prompt string) (string, error)
}
