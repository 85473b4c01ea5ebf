// Package answer turns retrieval results into a grounded, citation-bearing
// answer. It builds a prompt that labels each retrieved passage with a
// reference marker ([Ref1], [Ref2], ...), asks the completion model to cite
// those markers, and parses the markers back out of the response so callers
// can render a reference legend.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paperqa/paperqa-go/internal/budget"
	"github.com/paperqa/paperqa-go/internal/llm"
	"github.com/paperqa/paperqa-go/internal/rag"
)

// refPattern matches reference markers like [Ref1] or [Ref12] in model output.
var refPattern = regexp.MustCompile(`\[Ref(\d+)\]`)

// Citation links one reference marker in the answer text back to its source
// passage.
type Citation struct {
	// Marker is the literal marker as it appears in the answer, e.g. "[Ref2]".
	Marker string
	// Source is the document the cited passage came from.
	Source string
	// Seq is the sequence position of the cited chunk within its document.
	Seq int
	// Page is the 1-based page number of the cited passage, or 0 when the
	// source format has no pages.
	Page int
}

// Answer is a synthesized response with its supporting citations.
type Answer struct {
	// Text is the model's answer, reference markers included.
	Text string
	// Citations lists the markers actually used in Text, in order of first
	// appearance. Markers the model invented (no matching passage) are
	// dropped.
	Citations []Citation
}

// Synthesizer produces answers from retrieval results using a Completer.
type Synthesizer struct {
	// completer generates the answer text.
	completer llm.Completer
	// maxContextTokens caps the prompt budget. Zero means the package default.
	maxContextTokens int
}

// NewSynthesizer constructs a Synthesizer. maxContextTokens of zero selects
// budget.DefaultMaxContextTokens.
func NewSynthesizer(completer llm.Completer, maxContextTokens int) (*Synthesizer, error) {
	if completer == nil {
		return nil, fmt.Errorf("answer: completer must not be nil")
	}
	return &Synthesizer{
		completer:        completer,
		maxContextTokens: maxContextTokens,
	}, nil
}

// Synthesize builds the grounded prompt from question and results, runs the
// completion, and extracts the citations used. A completion failure yields no
// partial answer. Results must be rank-ordered best first; low-ranked results
// are dropped when they exceed the context budget.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, results []rag.Result) (*Answer, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("answer: no context passages to synthesize from")
	}

	reserved := budget.Estimate(question) + budget.Estimate(promptInstructions)
	fitted := budget.FitResults(results, reserved, s.maxContextTokens)

	prompt := buildPrompt(question, fitted)
	text, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("answer: completion failed: %w", err)
	}

	return &Answer{
		Text:      strings.TrimSpace(text),
		Citations: extractCitations(text, fitted),
	}, nil
}

// promptInstructions is the fixed instruction block appended after the
// passages. Kept as a constant so the budget reservation can account for it.
const promptInstructions = `Answer the question using ONLY the context passages above. ` +
	`Cite every claim with the marker of the passage supporting it, e.g. [Ref1]. ` +
	`If the context does not contain the answer, say so plainly instead of guessing.`

// buildPrompt renders the labeled passages, the instructions, and the
// question into a single prompt string.
func buildPrompt(question string, results []rag.Result) string {
	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	for i, res := range results {
		fmt.Fprintf(&b, "[Ref%d] (from %s)\n%s\n\n", i+1, res.Chunk.Source, res.Chunk.Text)
	}
	b.WriteString(promptInstructions)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

// extractCitations returns the citations for the markers appearing in text,
// in order of first appearance, deduplicated. Markers whose number does not
// correspond to a passage are dropped.
func extractCitations(text string, results []rag.Result) []Citation {
	matches := refPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := map[int]bool{}
	var citations []Citation
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(results) {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true

		res := results[n-1]
		citations = append(citations, Citation{
			Marker: m[0],
			Source: res.Chunk.Source,
			Seq:    res.Chunk.Seq,
			Page:   pageOf(res),
		})
	}
	return citations
}

// pageOf reads the page number from chunk metadata, or 0 when absent.
func pageOf(res rag.Result) int {
	page, err := strconv.Atoi(res.Chunk.Metadata["page"])
	if err != nil {
		return 0
	}
	return page
}
