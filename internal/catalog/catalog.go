// Package catalog provides a SQLite-backed record of ingested documents.
// It tracks each document's content checksum and chunk count so repeated
// ingest runs can skip unchanged files, and so status reporting works even
// when the vector index is unreachable.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned by Get when no record exists for the source.
var ErrNotFound = errors.New("catalog: document not found")

// Document is one ingested document's catalog record.
type Document struct {
	// Source is the document identifier, usually the path given at ingest.
	Source string
	// Checksum is the hex sha256 of the document's raw bytes at ingest time.
	Checksum string
	// ChunkCount is the number of chunks produced from the document.
	ChunkCount int
	// IngestedAt is when the document was last (re-)ingested.
	IngestedAt time.Time
}

// Catalog persists and retrieves ingest records. Implementations must be
// safe for concurrent use.
type Catalog interface {
	// Record inserts or replaces the record for a document.
	Record(ctx context.Context, doc Document) error
	// Get returns the record for a source, or ErrNotFound.
	Get(ctx context.Context, source string) (*Document, error)
	// List returns all records ordered by source.
	List(ctx context.Context) ([]Document, error)
	// DeleteByPrefix removes records whose source equals target or lives
	// under it as a path prefix. Returns the number of records removed.
	DeleteByPrefix(ctx context.Context, target string) (int, error)
	// Close releases any resources held by the catalog.
	Close() error
}

// SQLiteCatalog is a Catalog backed by a local SQLite database.
type SQLiteCatalog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the document catalog database.
// It resolves to ~/.paperqa/catalog.db, creating the directory if needed.
// PAPERQA_CATALOG_DB overrides the path entirely.
func DefaultDBPath() (string, error) {
	if p := os.Getenv("PAPERQA_CATALOG_DB"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".paperqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a SQLiteCatalog at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteCatalog, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	c := &SQLiteCatalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// migrate creates the schema if it does not already exist.
func (c *SQLiteCatalog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    source       TEXT    PRIMARY KEY,
    checksum     TEXT    NOT NULL,
    chunk_count  INTEGER NOT NULL,
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
`
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Record inserts or replaces the record for a document.
func (c *SQLiteCatalog) Record(ctx context.Context, doc Document) error {
	ts := doc.IngestedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	const q = `
INSERT INTO documents (source, checksum, chunk_count, ingested_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(source) DO UPDATE SET
    checksum = excluded.checksum,
    chunk_count = excluded.chunk_count,
    ingested_at = excluded.ingested_at`
	if _, err := c.db.ExecContext(ctx, q, doc.Source, doc.Checksum, doc.ChunkCount, ts.Unix()); err != nil {
		return fmt.Errorf("catalog: record %s: %w", doc.Source, err)
	}
	return nil
}

// Get returns the record for a source, or ErrNotFound.
func (c *SQLiteCatalog) Get(ctx context.Context, source string) (*Document, error) {
	const q = `SELECT source, checksum, chunk_count, ingested_at FROM documents WHERE source = ?`

	var doc Document
	var ts int64
	err := c.db.QueryRowContext(ctx, q, source).Scan(&doc.Source, &doc.Checksum, &doc.ChunkCount, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", source, err)
	}
	doc.IngestedAt = time.Unix(ts, 0)
	return &doc, nil
}

// List returns all records ordered by source.
func (c *SQLiteCatalog) List(ctx context.Context) ([]Document, error) {
	const q = `SELECT source, checksum, chunk_count, ingested_at FROM documents ORDER BY source`

	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var ts int64
		if err := rows.Scan(&doc.Source, &doc.Checksum, &doc.ChunkCount, &ts); err != nil {
			return nil, fmt.Errorf("catalog: list scan: %w", err)
		}
		doc.IngestedAt = time.Unix(ts, 0)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list rows: %w", err)
	}
	return docs, nil
}

// DeleteByPrefix removes records whose source equals target or lives under
// it as a path prefix. "papers" matches "papers/a.pdf" but not
// "papers-old/a.pdf". The target is cleaned first so "./papers" matches
// sources recorded as "papers/...".
func (c *SQLiteCatalog) DeleteByPrefix(ctx context.Context, target string) (int, error) {
	target = filepath.Clean(target)
	prefix := strings.TrimSuffix(target, "/") + "/"
	const q = `DELETE FROM documents WHERE source = ? OR source LIKE ? ESCAPE '\'`

	res, err := c.db.ExecContext(ctx, q, target, escapeLike(prefix)+"%")
	if err != nil {
		return 0, fmt.Errorf("catalog: delete %s: %w", target, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("catalog: delete %s: rows affected: %w", target, err)
	}
	return int(n), nil
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// Close releases the database connection pool.
func (c *SQLiteCatalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}
