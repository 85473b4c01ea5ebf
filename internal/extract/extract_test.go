package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSupports(t *testing.T) {
	t.Parallel()

	e := NewFileExtractor()
	tests := []struct {
		path string
		want bool
	}{
		{"paper.pdf", true},
		{"paper.PDF", true},
		{"notes.txt", true},
		{"readme.md", true},
		{"data.csv", false},
		{"archive.zip", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := e.Supports(tt.path); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestExtract_PlainText(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "paper.txt")
	if err := os.WriteFile(path, []byte("The method outperforms the baseline."), 0o644); err != nil {
		t.Fatal(err)
	}

	pages, err := NewFileExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("want 1 page, got %d", len(pages))
	}
	if pages[0].Number != 1 {
		t.Errorf("page number: got %d, want 1", pages[0].Number)
	}
	if pages[0].Text != "The method outperforms the baseline." {
		t.Errorf("unexpected text: %q", pages[0].Text)
	}
}

func TestExtract_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewFileExtractor().Extract("/nonexistent/paper.txt")
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("got err %v, want ErrUnreadable", err)
	}
}

func TestExtract_CorruptPDF(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileExtractor().Extract(path)
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("got err %v, want ErrUnreadable", err)
	}
}

func TestExtract_UnsupportedType(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("a,b,c"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileExtractor().Extract(path)
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("got err %v, want ErrUnreadable", err)
	}
}

func TestChecksum_StableAndContentSensitive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "paper.txt")
	if err := os.WriteFile(path, []byte("version one"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := Checksum(path)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	again, err := Checksum(path)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if first != again {
		t.Error("checksum not stable for unchanged file")
	}

	if err := os.WriteFile(path, []byte("version two"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := Checksum(path)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if changed == first {
		t.Error("checksum unchanged after content change")
	}
}
