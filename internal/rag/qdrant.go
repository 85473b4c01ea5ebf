package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/paperqa/paperqa-go/internal/chunk"
)

// Payload field names used in the Qdrant collection schema.
const (
	fieldText   = "text"
	fieldSource = "source"
	fieldSeq    = "seq"
)

// defaultMaxRetries bounds retry attempts for each Qdrant RPC before the
// operation fails with ErrIndexUnavailable.
const defaultMaxRetries = 3

// scrollPageSize is the page size used when scanning the collection for the
// source inventory.
const scrollPageSize = 256

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Must match the embedding provider's output.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries bounds retries per RPC. Defaults to 3 if zero.
	MaxRetries int
}

// QdrantStore implements VectorStore backed by a Qdrant collection.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensures the collection schema
// exists, and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// EnsureSchema creates the collection if it does not already exist: a cosine
// vector field of the configured dimensionality plus a keyword payload index
// on the source field so invalidation filters stay fast.
func (s *QdrantStore) EnsureSchema(ctx context.Context) error {
	var exists bool
	err := s.withRetry(ctx, "check collection", func() error {
		var err error
		exists, err = s.client.CollectionExists(ctx, s.cfg.Collection)
		return err
	})
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.withRetry(ctx, "create collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		return err
	}

	return s.withRetry(ctx, "create source index", func() error {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      fieldSource,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		return err
	})
}

// Upsert stores a batch of records keyed by deterministic point IDs derived
// from each chunk's ID, so re-ingesting an unchanged document replaces
// records instead of duplicating them. Records with empty vectors are
// rejected before anything is written.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) == 0 {
			return fmt.Errorf("qdrant: chunk %s (%s#%d) has no vector — refusing partial record",
				rec.Chunk.ID, rec.Chunk.Source, rec.Chunk.Seq)
		}

		payload := map[string]any{
			fieldText:   rec.Chunk.Text,
			fieldSource: rec.Chunk.Source,
			fieldSeq:    int64(rec.Chunk.Seq),
		}
		for k, v := range rec.Chunk.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(rec.Chunk.ID)),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	return s.withRetry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.Collection,
			Points:         points,
		})
		return err
	})
}

// Search performs a cosine similarity search and returns up to k results
// ordered by score descending, ties broken by Seq ascending then ID
// ascending for determinism.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int, filter *SearchFilter) ([]Result, error) {
	limit := uint64(k)
	query := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter != nil && len(filter.Sources) > 0 {
		conds := make([]*qdrant.Condition, 0, len(filter.Sources))
		for _, src := range filter.Sources {
			conds = append(conds, qdrant.NewMatchKeyword(fieldSource, src))
		}
		query.Filter = &qdrant.Filter{Should: conds}
	}

	var scored []*qdrant.ScoredPoint
	err := s.withRetry(ctx, "search", func() error {
		var err error
		scored, err = s.client.Query(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(scored))
	for _, p := range scored {
		results = append(results, Result{
			Chunk: chunkFromPayload(p.GetPayload()),
			Score: p.GetScore(),
		})
	}

	sortResults(results)
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// DeleteBySource removes all records whose source matches the given document
// path exactly or lives under it as a folder prefix. Returns the number of
// chunks removed; zero matches is not an error.
func (s *QdrantStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return 0, err
	}

	var targets []string
	for _, src := range status.Sources {
		if sourceMatches(src, source) {
			targets = append(targets, src)
		}
	}
	if len(targets) == 0 {
		return 0, nil
	}

	deleted := 0
	for _, target := range targets {
		f := &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeyword(fieldSource, target)},
		}

		var count uint64
		err := s.withRetry(ctx, "count", func() error {
			var err error
			count, err = s.client.Count(ctx, &qdrant.CountPoints{
				CollectionName: s.cfg.Collection,
				Filter:         f,
				Exact:          qdrant.PtrOf(true),
			})
			return err
		})
		if err != nil {
			return deleted, err
		}

		err = s.withRetry(ctx, "delete", func() error {
			_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
				CollectionName: s.cfg.Collection,
				Points:         qdrant.NewPointsSelectorFilter(f),
			})
			return err
		})
		if err != nil {
			return deleted, err
		}
		deleted += int(count)
	}

	return deleted, nil
}

// Status scans the collection and returns the chunk count plus the distinct
// set of source documents.
func (s *QdrantStore) Status(ctx context.Context) (*Status, error) {
	var total uint64
	err := s.withRetry(ctx, "count", func() error {
		var err error
		total, err = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.cfg.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	sources := map[string]bool{}
	var offset *qdrant.PointId
	seen := ""
	for {
		req := &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			WithPayload:    qdrant.NewWithPayloadInclude(fieldSource),
			Offset:         offset,
		}

		var points []*qdrant.RetrievedPoint
		err := s.withRetry(ctx, "scroll", func() error {
			var err error
			points, err = s.client.Scroll(ctx, req)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			break
		}

		for _, p := range points {
			if v, ok := p.GetPayload()[fieldSource]; ok {
				sources[v.GetStringValue()] = true
			}
		}

		last := points[len(points)-1]
		if len(points) < scrollPageSize || last.GetId().GetUuid() == seen {
			break
		}
		seen = last.GetId().GetUuid()
		offset = last.GetId()
	}

	names := make([]string, 0, len(sources))
	for src := range sources {
		names = append(names, src)
	}
	sort.Strings(names)

	return &Status{
		DocumentCount: len(names),
		ChunkCount:    int(total),
		Sources:       names,
	}, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// withRetry runs fn under bounded exponential backoff. Exhaustion is
// reported as ErrIndexUnavailable with the operation name for context.
func (s *QdrantStore) withRetry(ctx context.Context, op string, fn func() error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.MaxRetries)),
		ctx,
	)
	if err := backoff.Retry(fn, bo); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrIndexUnavailable, op, s.cfg.Collection, err)
	}
	return nil
}

// pointID derives the deterministic Qdrant point UUID from a chunk ID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// chunkFromPayload reconstructs a chunk from a Qdrant payload. Keys other
// than the schema fields are carried back as metadata.
func chunkFromPayload(payload map[string]*qdrant.Value) chunk.Chunk {
	c := chunk.Chunk{}
	for k, v := range payload {
		switch k {
		case fieldText:
			c.Text = v.GetStringValue()
		case fieldSource:
			c.Source = v.GetStringValue()
		case fieldSeq:
			c.Seq = int(v.GetIntegerValue())
		default:
			if c.Metadata == nil {
				c.Metadata = map[string]string{}
			}
			c.Metadata[k] = v.GetStringValue()
		}
	}
	c.ID = chunk.NewID(c.Source, c.Seq)
	return c
}

// sourceMatches reports whether src equals target or lives under target as
// a directory prefix (separator-aware, so "papers/a" never matches
// "papers/attention.pdf" by accident). The target is cleaned first so that
// "./papers" matches sources recorded as "papers/...".
func sourceMatches(src, target string) bool {
	target = filepath.Clean(target)
	if src == target {
		return true
	}
	prefix := strings.TrimRight(target, "/") + "/"
	return strings.HasPrefix(src, prefix)
}

// sortResults orders results by score descending with deterministic
// tie-breaks: Seq ascending, then ID ascending.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Seq != results[j].Chunk.Seq {
			return results[i].Chunk.Seq < results[j].Chunk.Seq
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}
