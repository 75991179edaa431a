package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// Ledger writes are retried a few times: the orchestrator goroutine and
// request handlers share the database, and a transiently locked write must
// not surface as a failed page.
const ledgerWriteAttempts = 3

// UpsertEntryStatus upserts an index entry carrying only identity and
// status. Used for the processing placeholder before a vision call and the
// error record after a failed one; existing metadata columns are preserved
// on conflict.
func (s *Store) UpsertEntryStatus(ctx context.Context, bookID, pageID string, pageNumber int, status EntryStatus) error {
	return s.ledgerWrite(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO book_page_index(book_id, page_id, page_number, index_status)
			 VALUES(?, ?, ?, ?)
			 ON CONFLICT(book_id, page_id) DO UPDATE SET
			   page_number = excluded.page_number,
			   index_status = excluded.index_status`,
			bookID, pageID, pageNumber, string(status),
		)
		return err
	})
}

// UpsertEntry upserts a full index entry and keeps the FTS mirror in sync.
func (s *Store) UpsertEntry(ctx context.Context, e *IndexEntry) error {
	topics, err := json.Marshal(emptyIfNil(e.Topics))
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}
	keywords, err := json.Marshal(emptyIfNil(e.Keywords))
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	var indexedAt any
	if e.IndexedAt != nil {
		indexedAt = e.IndexedAt.UTC().Format(time.RFC3339)
	}

	return s.ledgerWrite(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO book_page_index(book_id, page_id, page_number, extracted_text,
			   topics, keywords, chapter_title, summary, index_status, indexed_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(book_id, page_id) DO UPDATE SET
			   page_number = excluded.page_number,
			   extracted_text = excluded.extracted_text,
			   topics = excluded.topics,
			   keywords = excluded.keywords,
			   chapter_title = excluded.chapter_title,
			   summary = excluded.summary,
			   index_status = excluded.index_status,
			   indexed_at = excluded.indexed_at`,
			e.BookID, e.PageID, e.PageNumber, e.ExtractedText,
			string(topics), string(keywords), e.ChapterTitle, e.Summary,
			string(e.IndexStatus), indexedAt,
		)
		if err != nil {
			return err
		}
		return s.syncFTS(ctx, e)
	})
}

// GetEntry returns the index entry for a (book, page) pair.
func (s *Store) GetEntry(ctx context.Context, bookID, pageID string) (*IndexEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT book_id, page_id, page_number, extracted_text, topics, keywords,
		        chapter_title, summary, index_status, indexed_at
		 FROM book_page_index WHERE book_id = ? AND page_id = ?`,
		bookID, pageID)
	return scanEntry(row)
}

// ListEntries returns a book's index entries ordered by page number.
func (s *Store) ListEntries(ctx context.Context, bookID string) ([]*IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT book_id, page_id, page_number, extracted_text, topics, keywords,
		        chapter_title, summary, index_status, indexed_at
		 FROM book_page_index WHERE book_id = ? ORDER BY page_number`,
		bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list index entries: %w", err)
	}
	defer rows.Close()

	var entries []*IndexEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// syncFTS rewrites the FTS row for an entry. No-op when FTS is unavailable.
func (s *Store) syncFTS(ctx context.Context, e *IndexEntry) error {
	if !s.ftsEnabled {
		return nil
	}

	var entryID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM book_page_index WHERE book_id = ? AND page_id = ?`,
		e.BookID, e.PageID).Scan(&entryID)
	if err != nil {
		return fmt.Errorf("failed to resolve entry id for FTS sync: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM book_page_fts WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("failed to clear FTS row: %w", err)
	}

	var chapter string
	if e.ChapterTitle != nil {
		chapter = *e.ChapterTitle
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO book_page_fts(entry_id, extracted_text, summary, chapter_title, topics, keywords)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		entryID, e.ExtractedText, e.Summary, chapter,
		strings.Join(e.Topics, " "), strings.Join(e.Keywords, " "),
	)
	if err != nil {
		return fmt.Errorf("failed to write FTS row: %w", err)
	}
	return nil
}

func (s *Store) ledgerWrite(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(ledgerWriteAttempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrNotFound)
		}),
	)
}

func scanEntry(row scanner) (*IndexEntry, error) {
	var e IndexEntry
	var topics, keywords string
	var chapterTitle, indexedAt sql.NullString

	err := row.Scan(&e.BookID, &e.PageID, &e.PageNumber, &e.ExtractedText,
		&topics, &keywords, &chapterTitle, &e.Summary,
		(*string)(&e.IndexStatus), &indexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan index entry: %w", err)
	}

	e.ChapterTitle = nullableString(chapterTitle)
	if err := json.Unmarshal([]byte(topics), &e.Topics); err != nil {
		e.Topics = nil
	}
	if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil {
		e.Keywords = nil
	}
	if indexedAt.Valid {
		if t, err := time.Parse(time.RFC3339, indexedAt.String); err == nil {
			e.IndexedAt = &t
		}
	}
	return &e, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

