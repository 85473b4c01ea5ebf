package embedder

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/paperqa/paperqa-go/internal/rag"
)

// ErrUnavailable is returned when the embedding backend cannot be reached
// after all retries are exhausted. Callers can detect it with errors.Is to
// distinguish backend outages from bad input.
var ErrUnavailable = errors.New("embedder: backend unavailable")

// defaultBatchSize is the maximum number of texts sent to the backend in one
// request when no explicit batch size is configured.
const defaultBatchSize = 32

// defaultGatewayRetries is the retry budget per batch request.
const defaultGatewayRetries = 3

// GatewayConfig holds the settings for constructing a Gateway.
type GatewayConfig struct {
	// BatchSize caps the number of texts per backend request (default 32).
	BatchSize int
	// MaxRetries is the retry budget per batch on transient failure (default 3).
	MaxRetries int
	// RateLimit is the maximum backend requests per second. Zero disables
	// rate limiting.
	RateLimit float64
}

// Gateway wraps a rag.Embedder with batching, an in-process content cache,
// exponential-backoff retries, and request rate limiting. Results are always
// returned in input order, and a failed call never produces partial output.
// Safe for concurrent use.
type Gateway struct {
	// inner is the wrapped embedding backend.
	inner rag.Embedder
	// batchSize caps texts per backend request.
	batchSize int
	// maxRetries is the retry budget per batch.
	maxRetries int
	// limiter throttles backend requests. rate.Inf when limiting is disabled.
	limiter *rate.Limiter

	// mu guards cache.
	mu sync.Mutex
	// cache maps sha256 of the text to its embedding. Entries live for the
	// process lifetime — a CLI invocation is short enough that eviction is
	// not worth the bookkeeping.
	cache map[[32]byte][]float32
}

// NewGateway constructs a Gateway around the given backend. cfg may be nil,
// in which case defaults apply.
func NewGateway(inner rag.Embedder, cfg *GatewayConfig) (*Gateway, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedder: gateway backend must not be nil")
	}
	if cfg == nil {
		cfg = &GatewayConfig{}
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultGatewayRetries
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Gateway{
		inner:      inner,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		limiter:    rate.NewLimiter(limit, 1),
		cache:      map[[32]byte][]float32{},
	}, nil
}

// NewGatewayFromEnv constructs a Gateway around the given backend using the
// EMBEDDING_BATCH_SIZE, EMBEDDING_MAX_RETRIES, and EMBEDDING_RATE_LIMIT
// environment variables.
func NewGatewayFromEnv(inner rag.Embedder) (*Gateway, error) {
	return NewGateway(inner, &GatewayConfig{
		BatchSize:  getEnvInt("EMBEDDING_BATCH_SIZE", 0),
		MaxRetries: getEnvInt("EMBEDDING_MAX_RETRIES", 0),
		RateLimit:  getEnvFloat("EMBEDDING_RATE_LIMIT", 0),
	})
}

// Embed returns one embedding per input text, in input order. Cached texts
// are served without a backend call; the remainder is deduplicated, batched,
// and sent through the retry and rate-limit machinery. On failure the whole
// call fails — no partial results.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([][32]byte, len(texts))
	for i, t := range texts {
		keys[i] = sha256.Sum256([]byte(t))
	}

	// Collect texts not yet cached, deduplicated within this call.
	pending := map[[32]byte]bool{}
	var missTexts []string
	var missKeys [][32]byte

	g.mu.Lock()
	for i, key := range keys {
		if _, ok := g.cache[key]; ok {
			continue
		}
		if pending[key] {
			continue
		}
		pending[key] = true
		missTexts = append(missTexts, texts[i])
		missKeys = append(missKeys, key)
	}
	g.mu.Unlock()

	fresh := map[[32]byte][]float32{}
	for start := 0; start < len(missTexts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}

		vectors, err := g.embedBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for i, vec := range vectors {
			fresh[missKeys[start+i]] = vec
		}
	}

	g.mu.Lock()
	for key, vec := range fresh {
		g.cache[key] = vec
	}
	out := make([][]float32, len(texts))
	for i, key := range keys {
		out[i] = g.cache[key]
	}
	g.mu.Unlock()

	return out, nil
}

// embedBatch sends one batch through the rate limiter and retry loop.
func (g *Gateway) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		result, err := g.inner.Embed(ctx, texts)
		if err != nil {
			return err
		}
		if len(result) != len(texts) {
			return fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(result))
		}
		vectors = result
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(g.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return vectors, nil
}
