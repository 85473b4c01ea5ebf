// Package ingestion implements the document ingestion pipeline.
// It extracts text from paper files, chunks the content, embeds each chunk,
// upserts the results into the vector store, and records each document in
// the catalog. This pipeline is invoked by the `paperqa ingest` CLI command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/paperqa/paperqa-go/internal/catalog"
	"github.com/paperqa/paperqa-go/internal/chunk"
	"github.com/paperqa/paperqa-go/internal/embedder"
	"github.com/paperqa/paperqa-go/internal/extract"
	"github.com/paperqa/paperqa-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// Concurrency is the number of documents processed in parallel.
	// Defaults to 4 if zero.
	Concurrency int

	// Force re-ingests documents even when their checksum is unchanged.
	Force bool
}

// Failure records one document that could not be ingested.
type Failure struct {
	// Source is the document that failed.
	Source string
	// Err is the reason.
	Err error
}

// Report summarizes one ingest run.
type Report struct {
	// Ingested is the number of documents chunked, embedded, and stored.
	Ingested int
	// Skipped is the number of documents left untouched because their
	// checksum matched the catalog.
	Skipped int
	// Failures lists documents that could not be processed. A failed
	// document never leaves partial chunks behind — its old chunks are
	// only replaced after a full successful re-embed.
	Failures []Failure
}

// Pipeline orchestrates the extract → chunk → embed → upsert flow for a set
// of documents.
type Pipeline struct {
	// extractor pulls page text out of document files.
	extractor extract.Extractor

	// splitter cuts page text into bounded chunks.
	splitter *chunk.Splitter

	// embedder converts chunk texts into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// catalog records ingested documents for change detection and status.
	catalog catalog.Catalog

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(extractor extract.Extractor, splitter *chunk.Splitter, emb rag.Embedder, store rag.VectorStore, cat catalog.Catalog, cfg *Config) (*Pipeline, error) {
	if extractor == nil {
		return nil, fmt.Errorf("ingestion: extractor must not be nil")
	}
	if splitter == nil {
		return nil, fmt.Errorf("ingestion: splitter must not be nil")
	}
	if emb == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cat == nil {
		return nil, fmt.Errorf("ingestion: catalog must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Pipeline{
		extractor: extractor,
		splitter:  splitter,
		embedder:  emb,
		store:     store,
		catalog:   cat,
		cfg:       cfg,
	}, nil
}

// Ingest processes all given document paths, up to cfg.Concurrency at a
// time. Per-document problems (unreadable file, empty text) are isolated
// into the report's Failures; an unavailable embedding backend or vector
// index aborts the whole run, since every remaining document would fail the
// same way. Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, paths []string, progress func(msg string)) (*Report, error) {
	if progress == nil {
		progress = func(string) {}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		report   Report
		fatalErr error
	)
	sem := make(chan struct{}, p.cfg.Concurrency)

	for _, path := range paths {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				defer func() { <-sem }()

				outcome, err := p.ingestOne(ctx, path, progress)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil && outcome == outcomeSkipped:
					report.Skipped++
				case err == nil:
					report.Ingested++
				case isFatal(err):
					if fatalErr == nil {
						fatalErr = err
					}
					cancel()
				default:
					report.Failures = append(report.Failures, Failure{Source: path, Err: err})
				}
			}(path)
		}
		if ctx.Err() != nil {
			break
		}
	}
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Source < report.Failures[j].Source
	})
	return &report, nil
}

// outcome classifies a successful ingestOne call.
type outcome int

const (
	outcomeIngested outcome = iota
	outcomeSkipped
)

// ingestOne runs the full extract → chunk → embed → upsert → record flow for
// a single document.
func (p *Pipeline) ingestOne(ctx context.Context, path string, progress func(msg string)) (outcome, error) {
	checksum, err := extract.Checksum(path)
	if err != nil {
		return 0, fmt.Errorf("checksum: %w", err)
	}

	if !p.cfg.Force {
		existing, err := p.catalog.Get(ctx, path)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return 0, fmt.Errorf("catalog lookup: %w", err)
		}
		if existing != nil && existing.Checksum == checksum {
			progress(fmt.Sprintf("unchanged, skipping %s", path))
			return outcomeSkipped, nil
		}
	}

	pages, err := p.extractor.Extract(path)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	chunkPages := make([]chunk.Page, len(pages))
	for i, page := range pages {
		chunkPages[i] = chunk.Page{Number: page.Number, Text: page.Text}
	}
	chunks, err := p.splitter.SplitPages(path, chunkPages)
	if err != nil {
		return 0, fmt.Errorf("chunk: %w", err)
	}
	progress(fmt.Sprintf("chunked %s into %d chunks", path, len(chunks)))

	chunkTexts := make([]string, len(chunks))
	for i, c := range chunks {
		chunkTexts[i] = c.Text
	}
	embeddings, err := p.embedder.Embed(ctx, chunkTexts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embed: expected %d vectors, got %d", len(chunks), len(embeddings))
	}

	records := make([]rag.Record, len(chunks))
	for i, c := range chunks {
		records[i] = rag.Record{Chunk: c, Vector: embeddings[i]}
	}

	// Replace any stale chunks from a previous version of the document
	// before upserting the new set — a shrinking document must not leave
	// orphaned tail chunks behind.
	if _, err := p.store.DeleteBySource(ctx, path); err != nil {
		return 0, fmt.Errorf("clear stale chunks: %w", err)
	}
	if err := p.store.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}

	if err := p.catalog.Record(ctx, catalog.Document{
		Source:     path,
		Checksum:   checksum,
		ChunkCount: len(chunks),
	}); err != nil {
		return 0, fmt.Errorf("catalog record: %w", err)
	}

	progress(fmt.Sprintf("ingested %d chunks from %s", len(chunks), path))
	return outcomeIngested, nil
}

// isFatal reports whether an error dooms the rest of the run rather than
// just one document.
func isFatal(err error) bool {
	return errors.Is(err, embedder.ErrUnavailable) ||
		errors.Is(err, rag.ErrIndexUnavailable) ||
		errors.Is(err, context.Canceled)
}
