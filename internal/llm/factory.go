package llm

import (
	"fmt"
	"os"
	"strconv"
)

// NewFromEnv constructs a Completer by reading configuration from
// environment variables. COMPLETION_PROVIDER selects the backend; each
// backend uses its own credential env vars.
//
// Environment variables:
//
//	COMPLETION_PROVIDER  = ollama | openai | azure (default: ollama)
//
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434),
//	         COMPLETION_MODEL (default: llama3)
//	OpenAI:  COMPLETION_API_KEY or OPENAI_API_KEY,
//	         COMPLETION_ENDPOINT (default: https://api.openai.com/v1),
//	         COMPLETION_MODEL (default: gpt-4o-mini)
//	Azure:   COMPLETION_API_KEY, COMPLETION_ENDPOINT (required),
//	         COMPLETION_MODEL (deployment name),
//	         COMPLETION_API_VERSION (default: 2024-02-01)
//
//	Shared:  COMPLETION_MAX_TOKENS (default: 1024),
//	         COMPLETION_TEMPERATURE (default: 0.1)
func NewFromEnv() (Completer, error) {
	cfg := &Config{
		Backend:     Backend(getEnvOrDefault("COMPLETION_PROVIDER", string(BackendOllama))),
		Model:       os.Getenv("COMPLETION_MODEL"),
		BaseURL:     os.Getenv("COMPLETION_ENDPOINT"),
		APIKey:      getEnvOrDefault("COMPLETION_API_KEY", os.Getenv("OPENAI_API_KEY")),
		APIVersion:  getEnvOrDefault("COMPLETION_API_VERSION", "2024-02-01"),
		MaxTokens:   getEnvInt("COMPLETION_MAX_TOKENS", 1024),
		Temperature: getEnvFloat32("COMPLETION_TEMPERATURE", 0.1),
	}

	switch cfg.Backend {
	case BackendOllama:
		if cfg.Model == "" {
			cfg.Model = "llama3"
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv("OLLAMA_HOST")
		}
	case BackendOpenAI:
		if cfg.Model == "" {
			cfg.Model = "gpt-4o-mini"
		}
	}

	return New(cfg)
}

// New constructs a Completer from an explicit Config, delegating to the
// appropriate backend constructor. It validates the config first so callers
// get a clear error at startup rather than on the first request.
func New(cfg *Config) (Completer, error) {
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(cfg), nil

	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: COMPLETION_API_KEY or OPENAI_API_KEY is required for openai backend")
		}
		return newOpenAI(cfg), nil

	case BackendAzure:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: COMPLETION_API_KEY is required for azure backend")
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm: COMPLETION_ENDPOINT (Azure endpoint) is required for azure backend")
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("llm: COMPLETION_MODEL (Azure deployment name) is required for azure backend")
		}
		return newAzure(cfg), nil

	default:
		return nil, fmt.Errorf("llm: unknown backend %q — valid values: ollama, openai, azure", cfg.Backend)
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
