// Package rag defines the interfaces for the retrieval pipeline: vector
// storage, embedding, and question-time retrieval. Concrete implementations
// (Qdrant, HTTP embedding providers) satisfy these interfaces so the rest of
// the system never depends on a specific backend.
package rag

import (
	"context"
	"errors"

	"github.com/paperqa/paperqa-go/internal/chunk"
)

// ErrIndexUnavailable is returned when the backing vector store cannot be
// reached after the configured retries. Never swallowed — callers abort the
// operation and surface it.
var ErrIndexUnavailable = errors.New("rag: index store unavailable")

// ErrEmptyIndex is returned by Retrieve when the index holds zero chunks,
// i.e. nothing was ever ingested. Distinct from a zero-result search, which
// cannot happen on a non-empty index (nearest-neighbor always returns
// something).
var ErrEmptyIndex = errors.New("rag: index is empty — ingest documents first")

// Record is a chunk plus its embedding, as persisted in the index.
// Invariant: Vector is never empty — partially embedded chunks are never
// stored.
type Record struct {
	// Chunk is the retrievable unit being persisted.
	Chunk chunk.Chunk

	// Vector is the chunk's embedding. Required.
	Vector []float32
}

// Result is a retrieved chunk with its relevance score and rank position.
type Result struct {
	// Chunk is the retrieved (possibly merged) unit.
	Chunk chunk.Chunk

	// Score is the similarity score assigned by the vector search. Higher
	// is more relevant.
	Score float32

	// Rank is the 1-based position of this result in the final ordering.
	Rank int
}

// Status is a read-only inventory view of the index.
type Status struct {
	// DocumentCount is the number of distinct source documents indexed.
	DocumentCount int

	// ChunkCount is the total number of chunks indexed.
	ChunkCount int

	// Sources lists the distinct source document names, sorted.
	Sources []string
}

// SearchFilter restricts a search to particular source documents.
// A nil filter matches everything.
type SearchFilter struct {
	// Sources is the set of source documents to search within.
	Sources []string
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice — same order, same
	// length.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// EnsureSchema idempotently creates the backing index with the expected
	// schema. Safe to call on every startup.
	EnsureSchema(ctx context.Context) error

	// Upsert stores a batch of records, idempotent by chunk ID: re-upserting
	// the same ID replaces the prior record. Rejects records with empty
	// vectors before touching the store.
	Upsert(ctx context.Context, records []Record) error

	// DeleteBySource removes all records whose source matches the given
	// document path or folder prefix, returning the number removed.
	// Zero matches is a successful no-op, not an error.
	DeleteBySource(ctx context.Context, source string) (int, error)

	// Search returns up to k nearest records by vector similarity, ordered
	// by score descending with deterministic tie-breaks (Seq ascending,
	// then ID ascending).
	Search(ctx context.Context, vector []float32, k int, filter *SearchFilter) ([]Result, error)

	// Status returns the index inventory.
	Status(ctx context.Context) (*Status, error)

	// Close releases any resources held by the store.
	Close() error
}

// Retriever is the high-level interface used by the answer path to fetch
// relevant context for a question. It combines embedding and vector search.
type Retriever interface {
	// Retrieve returns the top-k most relevant results for the question,
	// deduplicated and ranked. Fails with ErrEmptyIndex when nothing has
	// been ingested.
	Retrieve(ctx context.Context, question string, topK int) ([]Result, error)
}
