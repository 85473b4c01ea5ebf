package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/paperqa/paperqa-go/internal/catalog"
	"github.com/paperqa/paperqa-go/internal/chunk"
	"github.com/paperqa/paperqa-go/internal/embedder"
	"github.com/paperqa/paperqa-go/internal/extract"
	"github.com/paperqa/paperqa-go/internal/rag"
)

// fakeEmbedder returns fixed-size vectors and can be told to fail.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

// fakeStore records upserts and deletions in order.
type fakeStore struct {
	mu      sync.Mutex
	records map[string][]rag.Record // keyed by source
	ops     []string                // "delete:<src>" / "upsert:<src>"
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string][]rag.Record{}}
}

func (f *fakeStore) EnsureSchema(context.Context) error { return nil }
func (f *fakeStore) Close() error                       { return nil }

func (f *fakeStore) Upsert(_ context.Context, records []rag.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range records {
		f.records[rec.Chunk.Source] = append(f.records[rec.Chunk.Source], rec)
	}
	if len(records) > 0 {
		f.ops = append(f.ops, "upsert:"+records[0].Chunk.Source)
	}
	return nil
}

func (f *fakeStore) DeleteBySource(_ context.Context, source string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.records[source])
	delete(f.records, source)
	f.ops = append(f.ops, "delete:"+source)
	return n, nil
}

func (f *fakeStore) Search(context.Context, []float32, int, *rag.SearchFilter) ([]rag.Result, error) {
	return nil, nil
}

func (f *fakeStore) Status(context.Context) (*rag.Status, error) {
	return &rag.Status{}, nil
}

func (f *fakeStore) chunksFor(source string) []rag.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[source]
}

// gappyExtractor simulates a PDF whose middle page was unreadable and
// skipped: the surviving pages keep their true 1-based numbers.
type gappyExtractor struct{}

func (gappyExtractor) Supports(string) bool { return true }

func (gappyExtractor) Extract(string) ([]extract.Page, error) {
	return []extract.Page{
		{Number: 1, Text: "Text from the first page."},
		{Number: 3, Text: "Text from the third page."},
	}, nil
}

// newTestPipeline wires a real splitter and in-memory catalog around the fakes.
func newTestPipeline(t *testing.T, emb rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, *catalog.SQLiteCatalog) {
	t.Helper()
	cat, err := catalog.Open(":memory:")
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	splitter := chunk.NewSplitter(200, 20)
	p, err := NewPipeline(extract.NewFileExtractor(), splitter, emb, store, cat, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, cat
}

// writeDoc creates a text document in a temp dir and returns its path.
func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const paperText = `Transformers process sequences with self-attention.

Attention weights every token against every other token. This makes context available at any distance.

Training uses teacher forcing and large batches.`

func TestIngest_EndToEnd(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p, cat := newTestPipeline(t, &fakeEmbedder{}, store, nil)
	path := writeDoc(t, "paper.txt", paperText)

	report, err := p.Ingest(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Ingested != 1 || report.Skipped != 0 || len(report.Failures) != 0 {
		t.Fatalf("report = %+v, want 1 ingested", report)
	}

	chunks := store.chunksFor(path)
	if len(chunks) == 0 {
		t.Fatal("no chunks stored")
	}
	for i, rec := range chunks {
		if rec.Chunk.Seq != i {
			t.Errorf("chunk %d has Seq %d, want gapless ascending", i, rec.Chunk.Seq)
		}
		if len(rec.Vector) != 3 {
			t.Errorf("chunk %d has no embedding", i)
		}
		if rec.Chunk.ID != chunk.NewID(path, i) {
			t.Errorf("chunk %d has non-deterministic ID", i)
		}
	}

	doc, err := cat.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}
	if doc.ChunkCount != len(chunks) {
		t.Errorf("catalog chunk count %d, want %d", doc.ChunkCount, len(chunks))
	}
}

func TestIngest_SkippedPagesKeepTrueNumbers(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	cat, err := catalog.Open(":memory:")
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	p, err := NewPipeline(gappyExtractor{}, chunk.NewSplitter(200, 0), &fakeEmbedder{}, store, cat, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	path := writeDoc(t, "gappy.pdf", "content only used for the checksum")
	if _, err := p.Ingest(context.Background(), []string{path}, nil); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	chunks := store.chunksFor(path)
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(chunks))
	}
	if got := chunks[0].Chunk.Metadata["page"]; got != "1" {
		t.Errorf("first chunk page: got %q, want 1", got)
	}
	// Page 2 was skipped as unreadable — the next chunk must still cite
	// page 3, not the position of its page in the extracted slice.
	if got := chunks[1].Chunk.Metadata["page"]; got != "3" {
		t.Errorf("chunk from page 3 attributed to page %q", got)
	}
}

func TestIngest_SkipsUnchangedDocument(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	emb := &fakeEmbedder{}
	p, _ := newTestPipeline(t, emb, store, nil)
	path := writeDoc(t, "paper.txt", paperText)

	if _, err := p.Ingest(context.Background(), []string{path}, nil); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	callsAfterFirst := emb.calls

	report, err := p.Ingest(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if report.Skipped != 1 || report.Ingested != 0 {
		t.Errorf("report = %+v, want 1 skipped", report)
	}
	if emb.calls != callsAfterFirst {
		t.Error("unchanged document must not be re-embedded")
	}
}

func TestIngest_ForceReingests(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p, _ := newTestPipeline(t, &fakeEmbedder{}, store, &Config{Force: true})
	path := writeDoc(t, "paper.txt", paperText)

	if _, err := p.Ingest(context.Background(), []string{path}, nil); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	report, err := p.Ingest(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if report.Ingested != 1 || report.Skipped != 0 {
		t.Errorf("report = %+v, want forced re-ingest", report)
	}
}

func TestIngest_ChangedDocumentReplacesChunks(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p, _ := newTestPipeline(t, &fakeEmbedder{}, store, nil)

	dir := t.TempDir()
	path := filepath.Join(dir, "paper.txt")
	if err := os.WriteFile(path, []byte(paperText), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := p.Ingest(context.Background(), []string{path}, nil); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	// Shrink the document: stale tail chunks must not survive.
	if err := os.WriteFile(path, []byte("Just one short paragraph now."), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	report, err := p.Ingest(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if report.Ingested != 1 {
		t.Fatalf("report = %+v, want re-ingest of changed doc", report)
	}

	chunks := store.chunksFor(path)
	if len(chunks) != 1 {
		t.Errorf("want 1 chunk after shrink, got %d", len(chunks))
	}

	// Deletion must precede the new upsert.
	var lastDelete, lastUpsert int
	for i, op := range store.ops {
		switch op {
		case "delete:" + path:
			lastDelete = i
		case "upsert:" + path:
			lastUpsert = i
		}
	}
	if lastDelete > lastUpsert {
		t.Error("stale chunks deleted after upsert — new chunks were clobbered")
	}
}

func TestIngest_UnreadableDocumentIsolated(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p, _ := newTestPipeline(t, &fakeEmbedder{}, store, nil)
	good := writeDoc(t, "good.txt", paperText)
	missing := filepath.Join(t.TempDir(), "missing.pdf")

	report, err := p.Ingest(context.Background(), []string{missing, good}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Ingested != 1 {
		t.Errorf("good document should still ingest, report = %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Source != missing {
		t.Errorf("want 1 failure for %s, got %+v", missing, report.Failures)
	}
}

func TestIngest_EmptyDocumentIsolated(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p, _ := newTestPipeline(t, &fakeEmbedder{}, store, nil)
	empty := writeDoc(t, "empty.txt", "   \n\n  ")

	report, err := p.Ingest(context.Background(), []string{empty}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("want 1 failure, got %+v", report)
	}
	if !errors.Is(report.Failures[0].Err, chunk.ErrEmptyDocument) {
		t.Errorf("failure should wrap ErrEmptyDocument, got %v", report.Failures[0].Err)
	}
}

func TestIngest_EmbedderOutageAbortsRun(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p, _ := newTestPipeline(t, &fakeEmbedder{err: embedder.ErrUnavailable}, store, &Config{Concurrency: 1})
	a := writeDoc(t, "a.txt", paperText)
	b := writeDoc(t, "b.txt", paperText)

	_, err := p.Ingest(context.Background(), []string{a, b}, nil)
	if !errors.Is(err, embedder.ErrUnavailable) {
		t.Fatalf("got err %v, want ErrUnavailable to abort the run", err)
	}
}

func TestIngest_ProgressReported(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	p, _ := newTestPipeline(t, &fakeEmbedder{}, store, &Config{Concurrency: 1})
	path := writeDoc(t, "paper.txt", paperText)

	var mu sync.Mutex
	var messages []string
	_, err := p.Ingest(context.Background(), []string{path}, func(msg string) {
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	joined := strings.Join(messages, "\n")
	if !strings.Contains(joined, "chunked") || !strings.Contains(joined, "ingested") {
		t.Errorf("progress messages missing stages: %q", joined)
	}
}
