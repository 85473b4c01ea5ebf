package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paperqa/paperqa-go/internal/rag"
)

// Supported embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Default embedding dimensions per provider family.
const (
	// ollamaDefaultDimensions matches nomic-embed-text.
	ollamaDefaultDimensions = 768
	// openaiDefaultDimensions matches text-embedding-3-small.
	openaiDefaultDimensions = 1536
)

// NewFromEnv constructs an embedding provider from environment variables.
//
// EMBEDDING_PROVIDER selects the backend ("ollama", "openai", "azure";
// default "ollama"). Each backend reads its own model, endpoint, and key
// settings:
//
//   - ollama: OLLAMA_HOST (default http://localhost:11434), EMBEDDING_MODEL
//     (default nomic-embed-text)
//   - openai: EMBEDDING_API_KEY or OPENAI_API_KEY, EMBEDDING_ENDPOINT
//     (default https://api.openai.com/v1), EMBEDDING_MODEL
//     (default text-embedding-3-small), EMBEDDING_DIMENSIONS
//   - azure: EMBEDDING_API_KEY, EMBEDDING_ENDPOINT (required),
//     EMBEDDING_MODEL (deployment name), EMBEDDING_API_VERSION
//     (default 2024-02-01), EMBEDDING_DIMENSIONS
func NewFromEnv() (rag.Embedder, error) {
	provider := getEnvOrDefault("EMBEDDING_PROVIDER", ProviderOllama)

	switch provider {
	case ProviderOllama:
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: getEnvOrDefault("EMBEDDING_MODEL", "nomic-embed-text"),
		}), nil

	case ProviderOpenAI:
		apiKey := getEnvOrDefault("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: EMBEDDING_API_KEY or OPENAI_API_KEY required for provider %q", provider)
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    getEnvOrDefault("EMBEDDING_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		}), nil

	case ProviderAzure:
		apiKey := os.Getenv("EMBEDDING_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: EMBEDDING_API_KEY required for provider %q", provider)
		}
		endpoint := os.Getenv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: EMBEDDING_ENDPOINT required for provider %q", provider)
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
			Azure:      true,
			APIVersion: getEnvOrDefault("EMBEDDING_API_VERSION", "2024-02-01"),
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unsupported provider %q (supported: ollama, openai, azure)", provider)
	}
}

// DefaultDimensions returns the embedding vector length for the configured
// provider, honouring an explicit EMBEDDING_DIMENSIONS override. The vector
// store needs this at collection-creation time.
func DefaultDimensions() int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	if getEnvOrDefault("EMBEDDING_PROVIDER", ProviderOllama) == ProviderOllama {
		return ollamaDefaultDimensions
	}
	return openaiDefaultDimensions
}

// getEnvOrDefault returns the value of the environment variable or the
// fallback when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the environment variable or the
// fallback when unset, empty, or unparsable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat returns the float value of the environment variable or the
// fallback when unset, empty, or unparsable.
func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
