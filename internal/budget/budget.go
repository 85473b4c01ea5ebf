// Package budget provides token budget estimation and context trimming for
// answer synthesis. Because the pipeline supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/paperqa/paperqa-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B,
	// GPT-3.5) while leaving room for the output.
	DefaultMaxContextTokens = 6000

	// perResultOverhead covers the reference label and framing text added
	// around each passage in the prompt (~8 tokens).
	perResultOverhead = 8
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateResults returns the estimated total token count for a slice of
// retrieval results, including per-passage prompt framing overhead.
func EstimateResults(results []rag.Result) int {
	total := 0
	for _, res := range results {
		total += perResultOverhead
		total += Estimate(res.Chunk.Text)
	}
	return total
}

// FitResults drops the lowest-ranked results until the remainder, plus
// reserved tokens for the question and instructions, fits within maxTokens.
// results must already be rank-ordered best first. The best result is never
// dropped — an oversized single passage is passed through so the caller can
// still attempt an answer rather than failing with empty context.
func FitResults(results []rag.Result, reserved, maxTokens int) []rag.Result {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	if len(results) == 0 {
		return results
	}

	for len(results) > 1 {
		if reserved+EstimateResults(results) <= maxTokens {
			break
		}
		// Drop the worst-ranked result.
		results = results[:len(results)-1]
	}
	return results
}
