package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks that the embedding configuration is usable before any
// documents are parsed or embedded. It returns an error when required
// settings are missing for the selected provider, and logs a warning when
// EMBEDDING_MODEL looks like a chat model rather than an embedding model.
//
// This is a pre-flight check — call it at command startup so operators get a
// clear error immediately rather than a cryptic failure mid-ingest.
func Validate(log *slog.Logger) error {
	provider := getEnvOrDefault("EMBEDDING_PROVIDER", ProviderOllama)

	switch provider {
	case ProviderOllama:
		// Local backend, no key required.

	case ProviderOpenAI:
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: provider is openai but no API key found — set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case ProviderAzure:
		if os.Getenv("EMBEDDING_API_KEY") == "" {
			return fmt.Errorf("embedder: provider is azure but EMBEDDING_API_KEY is not set")
		}
		if os.Getenv("EMBEDDING_ENDPOINT") == "" {
			return fmt.Errorf("embedder: provider is azure but EMBEDDING_ENDPOINT is not set")
		}

	default:
		return fmt.Errorf("embedder: unsupported provider %q (supported: ollama, openai, azure)", provider)
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
