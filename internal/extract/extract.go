// Package extract is the boundary to the PDF text extraction collaborator.
// It turns a document file into per-page plain text and translates every
// provider-specific failure into ErrUnreadable so the ingestion pipeline can
// skip the document and keep going.
package extract

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when a document's content cannot be extracted
// (corrupt file, unsupported format, encrypted PDF, ...).
var ErrUnreadable = errors.New("extract: document content cannot be read")

// Page is one page of extracted text. Number is 1-based.
type Page struct {
	// Number is the 1-based page number within the source document.
	Number int

	// Text is the page's plain text as produced by the extraction library.
	Text string
}

// Extractor converts a document file into per-page plain text.
type Extractor interface {
	// Extract reads the file at path and returns its pages in order.
	// Failures are reported as errors wrapping ErrUnreadable.
	Extract(path string) ([]Page, error)

	// Supports reports whether this extractor can handle the file at path,
	// judged by extension.
	Supports(path string) bool
}

// FileExtractor is the default Extractor. PDFs are parsed page by page;
// plain-text papers (.txt, .md) are read whole as a single page.
type FileExtractor struct{}

// NewFileExtractor constructs the default document extractor.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// Supports reports whether the file extension is one of .pdf, .txt, .md.
func (e *FileExtractor) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// Extract reads the document at path. Returns an error wrapping
// ErrUnreadable for any extraction failure.
func (e *FileExtractor) Extract(path string) ([]Page, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		return extractPlainText(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrUnreadable, filepath.Ext(path))
	}
}

// extractPDF parses a PDF and returns one Page per PDF page.
// The pdf library panics on some malformed files, so parsing runs under a
// recover that converts the panic into ErrUnreadable.
func extractPDF(path string) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: parser panic: %v", ErrUnreadable, path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages = make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single bad page makes the whole document suspect; partial
			// extraction would silently drop content.
			return nil, fmt.Errorf("%w: %s: page %d: %v", ErrUnreadable, path, i, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	return pages, nil
}

// extractPlainText reads a whole text file as page 1.
func extractPlainText(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return []Page{{Number: 1, Text: string(data)}}, nil
}

// Checksum computes the hex SHA-256 of the file at path. The ingest catalog
// uses it to detect unchanged documents and skip re-embedding them.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: checksum %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("extract: checksum %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
