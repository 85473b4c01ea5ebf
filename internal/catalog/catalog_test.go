package catalog

import (
	"context"
	"errors"
	"testing"
)

// openTestCatalog opens an in-memory SQLiteCatalog for use in tests.
func openTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory catalog: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func Test_Catalog_RecordAndGet(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.Record(ctx, Document{Source: "papers/attn.pdf", Checksum: "abc123", ChunkCount: 12}); err != nil {
		t.Fatalf("record: %v", err)
	}

	doc, err := c.Get(ctx, "papers/attn.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Checksum != "abc123" || doc.ChunkCount != 12 {
		t.Errorf("got %q/%d, want abc123/12", doc.Checksum, doc.ChunkCount)
	}
	if doc.IngestedAt.IsZero() {
		t.Error("IngestedAt should be populated")
	}
}

func Test_Catalog_GetMissingReturnsErrNotFound(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)

	_, err := c.Get(context.Background(), "nope.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got err %v, want ErrNotFound", err)
	}
}

func Test_Catalog_RecordReplacesExisting(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.Record(ctx, Document{Source: "a.pdf", Checksum: "old", ChunkCount: 3}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := c.Record(ctx, Document{Source: "a.pdf", Checksum: "new", ChunkCount: 5}); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	doc, err := c.Get(ctx, "a.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Checksum != "new" || doc.ChunkCount != 5 {
		t.Errorf("re-record did not replace: got %q/%d", doc.Checksum, doc.ChunkCount)
	}

	docs, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("want 1 record after replace, got %d", len(docs))
	}
}

func Test_Catalog_ListOrderedBySource(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	for _, src := range []string{"c.pdf", "a.pdf", "b.pdf"} {
		if err := c.Record(ctx, Document{Source: src, Checksum: "x", ChunkCount: 1}); err != nil {
			t.Fatalf("record %s: %v", src, err)
		}
	}

	docs, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"a.pdf", "b.pdf", "c.pdf"}
	for i, w := range want {
		if docs[i].Source != w {
			t.Errorf("docs[%d]: want %q, got %q", i, w, docs[i].Source)
		}
	}
}

func Test_Catalog_DeleteByPrefix(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	for _, src := range []string{"papers/a.pdf", "papers/b.pdf", "papers-old/c.pdf", "other.pdf"} {
		if err := c.Record(ctx, Document{Source: src, Checksum: "x", ChunkCount: 1}); err != nil {
			t.Fatalf("record %s: %v", src, err)
		}
	}

	n, err := c.DeleteByPrefix(ctx, "papers")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Errorf("want 2 deleted, got %d", n)
	}

	docs, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("want 2 survivors, got %d", len(docs))
	}
	// "papers-old/c.pdf" must survive: path prefix, not string prefix.
	if docs[0].Source != "other.pdf" || docs[1].Source != "papers-old/c.pdf" {
		t.Errorf("unexpected survivors: %q, %q", docs[0].Source, docs[1].Source)
	}
}

func Test_Catalog_DeleteByPrefix_UncleanedTarget(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.Record(ctx, Document{Source: "papers/a.pdf", Checksum: "x", ChunkCount: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}

	// CLI arguments like "./papers" must match sources recorded in
	// canonical form.
	n, err := c.DeleteByPrefix(ctx, "./papers")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("want 1 deleted for uncleaned target, got %d", n)
	}
}

func Test_Catalog_DeleteExactSource(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.Record(ctx, Document{Source: "single.pdf", Checksum: "x", ChunkCount: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}

	n, err := c.DeleteByPrefix(ctx, "single.pdf")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("want 1 deleted, got %d", n)
	}
}

func Test_Catalog_DeleteNoMatchIsZero(t *testing.T) {
	t.Parallel()
	c := openTestCatalog(t)

	n, err := c.DeleteByPrefix(context.Background(), "ghost.pdf")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 0 {
		t.Errorf("want 0 deleted, got %d", n)
	}
}
