package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  provider: openai
  model: text-embedding-3-small
  dimensions: 1536
  batch_size: 16
completion:
  provider: openai
  model: gpt-4o-mini
  max_tokens: 1024
qdrant:
  host: qdrant.internal
  port: 6334
  collection: papers
chunking:
  max_chars: 1200
  overlap: 120
retrieval:
  top_k: 8
logging:
  level: debug
  format: json
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS", "EMBEDDING_BATCH_SIZE",
		"COMPLETION_PROVIDER", "COMPLETION_MODEL", "COMPLETION_MAX_TOKENS",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"CHUNK_MAX_CHARS", "CHUNK_OVERLAP", "RETRIEVAL_TOP_K",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"EMBEDDING_PROVIDER":    "openai",
		"EMBEDDING_MODEL":       "text-embedding-3-small",
		"EMBEDDING_DIMENSIONS":  "1536",
		"EMBEDDING_BATCH_SIZE":  "16",
		"COMPLETION_PROVIDER":   "openai",
		"COMPLETION_MODEL":      "gpt-4o-mini",
		"COMPLETION_MAX_TOKENS": "1024",
		"QDRANT_HOST":           "qdrant.internal",
		"QDRANT_PORT":           "6334",
		"QDRANT_COLLECTION":     "papers",
		"CHUNK_MAX_CHARS":       "1200",
		"CHUNK_OVERLAP":         "120",
		"RETRIEVAL_TOP_K":       "8",
		"LOG_LEVEL":             "debug",
		"LOG_FORMAT":            "json",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("EMBEDDING_PROVIDER", "openai")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("EMBEDDING_PROVIDER"); got != "openai" {
		t.Errorf("EMBEDDING_PROVIDER: expected env override %q, got %q", "openai", got)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("embedding: [not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	if _, err := Load(cfgPath, log); err == nil {
		t.Fatal("expected parse error for malformed YAML, got nil")
	}
}
