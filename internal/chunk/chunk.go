// Package chunk defines the atomic unit of retrieval — a bounded slice of
// document text with stable identity and provenance — and the splitter that
// produces chunks from raw extracted text.
package chunk

import (
	"crypto/sha256"
	"fmt"
)

// Chunk is the atomic retrievable unit of a document.
// A Chunk is an immutable value: re-ingesting an unchanged document yields
// byte-identical chunks with identical IDs, which is what makes upserts to
// the vector store idempotent.
type Chunk struct {
	// ID is the stable identifier, derived from (Source, Seq). See NewID.
	ID string

	// Source is the path or logical name of the originating document.
	// Used for invalidation and for display in citations.
	Source string

	// Seq is the ordinal position of this chunk within its source document,
	// starting at 0, strictly increasing and gapless.
	Seq int

	// Text is the chunk's textual content. Always non-empty.
	Text string

	// Metadata holds open key-value annotations (e.g. "page") carried
	// through to the answer for attribution. Metadata never participates in
	// identity or embedding.
	Metadata map[string]string
}

// NewID derives the deterministic chunk identifier from the source document
// name and the chunk's sequence index. The same (source, seq) pair always
// produces the same ID, so re-ingestion replaces rather than duplicates.
func NewID(source string, seq int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", source, seq)))
	return fmt.Sprintf("%x", h[:16])
}
