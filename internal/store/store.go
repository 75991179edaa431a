// Package store provides SQLite-backed persistence for books, pages, and the
// page index. It is pure data access: lifecycle rules (who may write which
// columns) are enforced by the callers that own them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyIndexing is returned by ClaimIndexing when another run holds the
// book's indexing claim.
var ErrAlreadyIndexing = errors.New("book is already being indexed")

// ErrRankedSearchUnavailable is returned by SearchRanked when the FTS index
// is not provisioned. Callers are expected to fall back to SearchFallback.
var ErrRankedSearchUnavailable = errors.New("ranked search unavailable")

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// ftsEnabled records whether the FTS5 virtual table could be created.
	// When false, SearchRanked reports ErrRankedSearchUnavailable.
	ftsEnabled bool
}

const schema = `
CREATE TABLE IF NOT EXISTS books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  grade_level TEXT NOT NULL DEFAULT '',
  subject TEXT,
  cover_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  index_status TEXT NOT NULL DEFAULT 'not_indexed',
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS book_pages (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL REFERENCES books(id),
  page_number INTEGER NOT NULL,
  image_url TEXT NOT NULL,
  thumbnail_url TEXT,
  detected_page_number TEXT,
  page_type TEXT NOT NULL DEFAULT 'unknown',
  detection_confidence REAL NOT NULL DEFAULT 0,
  detection_completed INTEGER NOT NULL DEFAULT 0,
  UNIQUE(book_id, page_number)
);

CREATE TABLE IF NOT EXISTS book_page_index (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  book_id TEXT NOT NULL REFERENCES books(id),
  page_id TEXT NOT NULL REFERENCES book_pages(id),
  page_number INTEGER NOT NULL,
  extracted_text TEXT NOT NULL DEFAULT '',
  topics TEXT NOT NULL DEFAULT '[]',
  keywords TEXT NOT NULL DEFAULT '[]',
  chapter_title TEXT,
  summary TEXT NOT NULL DEFAULT '',
  index_status TEXT NOT NULL DEFAULT 'pending',
  indexed_at TEXT,
  UNIQUE(book_id, page_id)
);

CREATE INDEX IF NOT EXISTS idx_pages_book_number ON book_pages(book_id, page_number);
CREATE INDEX IF NOT EXISTS idx_index_status ON book_page_index(index_status);
`

// ftsSchema mirrors the searchable text fields of book_page_index. entry_id
// points at book_page_index.id; the store keeps the two in sync on upsert.
const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS book_page_fts USING fts5(
  entry_id UNINDEXED,
  extracted_text,
  summary,
  chapter_title,
  topics,
  keywords
);
`

// Open opens (creating if needed) the database at path and initializes the
// schema. Pass ":memory:" for an in-memory database in tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY churn between the orchestrator
	// goroutine and request handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{db: db, logger: logger}

	// FTS5 is optional: when the build lacks it, the fallback search path
	// serves queries instead.
	if _, err := db.ExecContext(ctx, ftsSchema); err != nil {
		logger.Warn("FTS5 unavailable, ranked search disabled", "error", err)
	} else {
		s.ftsEnabled = true
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RankedSearchEnabled reports whether the FTS primary path is provisioned.
func (s *Store) RankedSearchEnabled() bool {
	return s.ftsEnabled
}
