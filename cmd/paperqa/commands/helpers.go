package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paperqa/paperqa-go/internal/catalog"
	"github.com/paperqa/paperqa-go/internal/embedder"
	"github.com/paperqa/paperqa-go/internal/rag"
)

// buildEmbedder constructs the embedding backend from the environment and
// wraps it in the batching/caching/retry gateway.
func buildEmbedder() (rag.Embedder, error) {
	backend, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	gateway, err := embedder.NewGatewayFromEnv(backend)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedding gateway: %w", err)
	}
	return gateway, nil
}

// buildStore connects to the Qdrant vector store using the QDRANT_* env vars.
func buildStore(ctx context.Context) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "paperqa-chunks"),
		VectorSize: uint64(embedder.DefaultDimensions()),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return store, nil
}

// openCatalog opens the document catalog at its default (or overridden) path.
func openCatalog() (*catalog.SQLiteCatalog, error) {
	path, err := catalog.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog at %s: %w", path, err)
	}
	return cat, nil
}

// collectDocuments resolves a file or folder argument into the list of
// ingestable document paths. Folders are walked recursively; only supported
// extensions (.pdf, .txt, .md) are picked up.
func collectDocuments(root string, supports func(path string) bool) ([]string, error) {
	// Clean so sources are recorded in canonical form ("papers/a.pdf", not
	// "./papers/a.pdf") and later invalidate calls match them.
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", root, err)
	}

	if !info.IsDir() {
		if !supports(root) {
			return nil, fmt.Errorf("unsupported file type: %s", root)
		}
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && supports(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no supported documents (.pdf, .txt, .md) under %s", root)
	}
	return paths, nil
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
