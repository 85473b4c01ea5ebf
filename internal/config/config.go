// Package config provides YAML-based configuration for paperqa.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. PAPERQA_CONFIG environment variable
//  3. ~/.paperqa/config.yaml
//  4. ./paperqa.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Completion configures the completion (answer generation) provider.
	Completion CompletionConfig `yaml:"completion"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Chunking configures the document chunking policy.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Retrieval configures question answering retrieval.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Catalog configures the local ingest catalog database.
	Catalog CatalogConfig `yaml:"catalog"`

	// Ingest configures the ingestion pipeline.
	Ingest IngestConfig `yaml:"ingest"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// BatchSize is the maximum number of texts per embedding request.
	BatchSize int `yaml:"batch_size"`
	// MaxRetries bounds retry attempts for transient embedding failures.
	MaxRetries int `yaml:"max_retries"`
	// RateLimit is the maximum embedding requests per second (0 = unlimited).
	RateLimit float64 `yaml:"rate_limit"`
}

// CompletionConfig holds completion provider settings.
type CompletionConfig struct {
	// Provider selects the completion backend (ollama, openai).
	Provider string `yaml:"provider"`
	// Model is the completion model name.
	Model string `yaml:"model"`
	// APIKey is the completion API key. Prefer env var COMPLETION_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the completion API endpoint.
	Endpoint string `yaml:"endpoint"`
	// MaxTokens caps the number of tokens generated per answer.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls answer randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ChunkingConfig holds document chunking settings.
type ChunkingConfig struct {
	// MaxChars is the maximum characters per chunk.
	MaxChars int `yaml:"max_chars"`
	// Overlap is the number of characters shared between consecutive chunks.
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds retrieval settings for question answering.
type RetrievalConfig struct {
	// TopK is the number of nearest chunks retrieved per question.
	TopK int `yaml:"top_k"`
	// MaxContextTokens bounds the prompt context built from retrieved chunks.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// CatalogConfig holds local ingest catalog settings.
type CatalogConfig struct {
	// DBPath is the SQLite database path (default: ~/.paperqa/catalog.db).
	DBPath string `yaml:"db_path"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	// Concurrency is the number of embedding batches processed in parallel.
	Concurrency int `yaml:"concurrency"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"EMBEDDING_MAX_RETRIES", func(c *Config) string { return intStr(c.Embedding.MaxRetries) }},
	{"EMBEDDING_RATE_LIMIT", func(c *Config) string { return floatStr(c.Embedding.RateLimit) }},
	{"COMPLETION_PROVIDER", func(c *Config) string { return c.Completion.Provider }},
	{"COMPLETION_MODEL", func(c *Config) string { return c.Completion.Model }},
	{"COMPLETION_API_KEY", func(c *Config) string { return c.Completion.APIKey }},
	{"COMPLETION_ENDPOINT", func(c *Config) string { return c.Completion.Endpoint }},
	{"COMPLETION_MAX_TOKENS", func(c *Config) string { return intStr(c.Completion.MaxTokens) }},
	{"COMPLETION_TEMPERATURE", func(c *Config) string { return float32Str(c.Completion.Temperature) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"CHUNK_MAX_CHARS", func(c *Config) string { return intStr(c.Chunking.MaxChars) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"RETRIEVAL_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.Retrieval.MaxContextTokens) }},
	{"PAPERQA_CATALOG_DB", func(c *Config) string { return c.Catalog.DBPath }},
	{"INGEST_CONCURRENCY", func(c *Config) string { return intStr(c.Ingest.Concurrency) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("PAPERQA_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".paperqa", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("paperqa.yaml"); err == nil {
		return "paperqa.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	return floatStr(float64(v))
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
