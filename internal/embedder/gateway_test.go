package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// recordingEmbedder returns a distinct vector per text (derived from its
// length and first byte) and records every batch it receives. failUntil
// makes the first N calls fail, for retry tests.
type recordingEmbedder struct {
	mu        sync.Mutex
	batches   [][]string
	failUntil int
	calls     int
}

func (r *recordingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.calls <= r.failUntil {
		return nil, fmt.Errorf("transient failure %d", r.calls)
	}

	batch := make([]string, len(texts))
	copy(batch, texts)
	r.batches = append(r.batches, batch)

	out := make([][]float32, len(texts))
	for i, t := range texts {
		var first float32
		if len(t) > 0 {
			first = float32(t[0])
		}
		out[i] = []float32{float32(len(t)), first}
	}
	return out, nil
}

func (r *recordingEmbedder) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestGateway_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	inner := &recordingEmbedder{}
	g, err := NewGateway(inner, &GatewayConfig{BatchSize: 2})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	texts := []string{"alpha", "bb", "c", "dddd", "ee"}
	got, err := g.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("want %d vectors, got %d", len(texts), len(got))
	}
	for i, text := range texts {
		if got[i][0] != float32(len(text)) {
			t.Errorf("vector %d does not correspond to input %q", i, text)
		}
	}
}

func TestGateway_RespectsBatchSize(t *testing.T) {
	t.Parallel()

	inner := &recordingEmbedder{}
	g, _ := NewGateway(inner, &GatewayConfig{BatchSize: 3})

	texts := []string{"a", "b", "c", "d", "e", "f", "g"}
	if _, err := g.Embed(context.Background(), texts); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(inner.batches) != 3 {
		t.Fatalf("want 3 batches for 7 texts at size 3, got %d", len(inner.batches))
	}
	for i, batch := range inner.batches {
		if len(batch) > 3 {
			t.Errorf("batch %d has %d texts, exceeds cap 3", i, len(batch))
		}
	}
}

func TestGateway_CacheHitSkipsBackend(t *testing.T) {
	t.Parallel()

	inner := &recordingEmbedder{}
	g, _ := NewGateway(inner, nil)

	if _, err := g.Embed(context.Background(), []string{"repeated text"}); err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	before := inner.totalCalls()

	got, err := g.Embed(context.Background(), []string{"repeated text"})
	if err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	if inner.totalCalls() != before {
		t.Errorf("cached text reached the backend: %d calls before, %d after", before, inner.totalCalls())
	}
	if got[0][0] != float32(len("repeated text")) {
		t.Error("cache returned wrong vector")
	}
}

func TestGateway_DeduplicatesWithinCall(t *testing.T) {
	t.Parallel()

	inner := &recordingEmbedder{}
	g, _ := NewGateway(inner, &GatewayConfig{BatchSize: 10})

	got, err := g.Embed(context.Background(), []string{"same", "same", "other", "same"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(inner.batches) != 1 {
		t.Fatalf("want 1 batch, got %d", len(inner.batches))
	}
	if len(inner.batches[0]) != 2 {
		t.Errorf("backend saw %d texts, want 2 unique", len(inner.batches[0]))
	}
	if len(got) != 4 {
		t.Fatalf("want 4 vectors (one per input), got %d", len(got))
	}
	if got[0][0] != got[1][0] || got[1][0] != got[3][0] {
		t.Error("duplicate inputs did not receive identical vectors")
	}
}

func TestGateway_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	inner := &recordingEmbedder{failUntil: 2}
	g, _ := NewGateway(inner, &GatewayConfig{MaxRetries: 3})

	got, err := g.Embed(context.Background(), []string{"eventually works"})
	if err != nil {
		t.Fatalf("Embed should succeed after retries: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 vector, got %d", len(got))
	}
	if inner.totalCalls() != 3 {
		t.Errorf("want 3 attempts (2 failures + 1 success), got %d", inner.totalCalls())
	}
}

func TestGateway_ExhaustedRetriesReturnErrUnavailable(t *testing.T) {
	t.Parallel()

	inner := &recordingEmbedder{failUntil: 100}
	g, _ := NewGateway(inner, &GatewayConfig{MaxRetries: 2})

	_, err := g.Embed(context.Background(), []string{"never works"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got err %v, want ErrUnavailable", err)
	}
	// 1 initial attempt + 2 retries.
	if inner.totalCalls() != 3 {
		t.Errorf("want 3 attempts, got %d", inner.totalCalls())
	}
}

func TestGateway_EmptyInput(t *testing.T) {
	t.Parallel()

	inner := &recordingEmbedder{}
	g, _ := NewGateway(inner, nil)

	got, err := g.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed(nil): %v", err)
	}
	if got != nil {
		t.Errorf("want nil result for empty input, got %v", got)
	}
	if inner.totalCalls() != 0 {
		t.Error("empty input must not reach the backend")
	}
}

func TestNewGateway_NilBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewGateway(nil, nil); err == nil {
		t.Fatal("want error for nil backend")
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  bool
	}{
		{"nomic-embed-text", false},
		{"text-embedding-3-small", false},
		{"gpt-4o", true},
		{"Llama3.1:8b", true},
		{"mxbai-embed-large", false},
		{"qwen2.5:7b", true},
	}
	for _, tt := range tests {
		if got := looksLikeChatModel(tt.model); got != tt.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
