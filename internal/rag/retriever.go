package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DefaultRetriever implements the Retriever interface by combining an
// Embedder and a VectorStore. It embeds the question exactly once at
// retrieval time, delegates similarity search to the store, and then merges
// near-duplicate results from the same passage before ranking.
type DefaultRetriever struct {
	// embedder converts the question text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// VectorStore. defaultTopK sets the fallback result count when Retrieve is
// called with topK=0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &DefaultRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the question and returns the top-k most relevant results,
// merged and ranked. Fails with ErrEmptyIndex when the store holds zero
// chunks, so "nothing ingested yet" is distinguishable from a search miss.
func (r *DefaultRetriever) Retrieve(ctx context.Context, question string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	status, err := r.store.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: checking index status: %w", err)
	}
	if status.ChunkCount == 0 {
		return nil, ErrEmptyIndex
	}

	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding question failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for question")
	}

	results, err := r.store.Search(ctx, embeddings[0], topK, nil)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	merged := mergeAdjacent(results)
	sortResults(merged)
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged, nil
}

// mergeAdjacent collapses results that reference the same source document at
// adjacent sequence positions into a single result whose text is the
// concatenation in sequence order. The highest score among merged members
// survives, so ranking still reflects the best match in the passage.
// Merging is adjacency-only: non-adjacent chunks from the same document stay
// separate results.
func mergeAdjacent(results []Result) []Result {
	if len(results) < 2 {
		return results
	}

	bySource := map[string][]Result{}
	order := []string{}
	for _, res := range results {
		if _, ok := bySource[res.Chunk.Source]; !ok {
			order = append(order, res.Chunk.Source)
		}
		bySource[res.Chunk.Source] = append(bySource[res.Chunk.Source], res)
	}

	var merged []Result
	for _, src := range order {
		group := bySource[src]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Chunk.Seq < group[j].Chunk.Seq
		})

		run := group[:1]
		for _, res := range group[1:] {
			if res.Chunk.Seq == run[len(run)-1].Chunk.Seq+1 {
				run = append(run, res)
				continue
			}
			merged = append(merged, mergeRun(run))
			run = []Result{res}
		}
		merged = append(merged, mergeRun(run))
	}

	return merged
}

// mergeRun folds a run of sequence-adjacent results into one. The merged
// result keeps the identity (ID, Seq, Metadata) of the run's first chunk and
// the maximum score of its members.
func mergeRun(run []Result) Result {
	if len(run) == 1 {
		return run[0]
	}

	texts := make([]string, 0, len(run))
	best := run[0].Score
	for _, res := range run {
		texts = append(texts, res.Chunk.Text)
		if res.Score > best {
			best = res.Score
		}
	}

	out := run[0]
	out.Chunk.Text = strings.Join(texts, "\n")
	out.Score = best
	return out
}
