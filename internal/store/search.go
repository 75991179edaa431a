package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

const searchColumns = `
	e.book_id, e.page_id, e.page_number, e.extracted_text, e.summary,
	e.chapter_title, e.topics, e.keywords,
	b.title, b.grade_level, b.subject, b.cover_url`

// SearchRanked runs the primary ranked search over the FTS index, limited to
// completed entries of active books, ordered by bm25 relevance. Returns
// ErrRankedSearchUnavailable when FTS is not provisioned; callers fall back
// to SearchFallback.
func (s *Store) SearchRanked(ctx context.Context, query string, limit int) ([]SearchRow, error) {
	if !s.ftsEnabled {
		return nil, ErrRankedSearchUnavailable
	}

	match := ftsMatchQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+searchColumns+`
		 FROM book_page_fts f
		 JOIN book_page_index e ON e.id = f.entry_id
		 JOIN books b ON b.id = e.book_id
		 WHERE book_page_fts MATCH ?
		   AND e.index_status = 'completed'
		   AND b.is_active = 1
		 ORDER BY bm25(book_page_fts)
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ranked search failed: %w", err)
	}
	defer rows.Close()

	return collectSearchRows(rows)
}

// SearchFallback runs the simple case-insensitive substring match across
// extracted text, summary, and chapter title. The caller-visible contract is
// identical to the ranked path; only ordering and coverage may differ.
func (s *Store) SearchFallback(ctx context.Context, query string, limit int) ([]SearchRow, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+searchColumns+`
		 FROM book_page_index e
		 JOIN books b ON b.id = e.book_id
		 WHERE e.index_status = 'completed'
		   AND b.is_active = 1
		   AND (lower(e.extracted_text) LIKE ?
		     OR lower(e.summary) LIKE ?
		     OR lower(coalesce(e.chapter_title, '')) LIKE ?)
		 ORDER BY e.book_id, e.page_number
		 LIMIT ?`,
		pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fallback search failed: %w", err)
	}
	defer rows.Close()

	return collectSearchRows(rows)
}

// ftsMatchQuery converts free text into an FTS5 MATCH expression: each
// whitespace token becomes a quoted phrase, all tokens required. Quoting
// keeps user input from being parsed as FTS syntax.
func ftsMatchQuery(query string) string {
	tokens := strings.Fields(strings.TrimSpace(query))
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func collectSearchRows(rows *sql.Rows) ([]SearchRow, error) {
	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		var chapterTitle, subject, coverURL sql.NullString
		var topics, keywords string

		err := rows.Scan(&r.BookID, &r.PageID, &r.PageNumber, &r.ExtractedText,
			&r.Summary, &chapterTitle, &topics, &keywords,
			&r.BookTitle, &r.GradeLevel, &subject, &coverURL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}

		r.ChapterTitle = nullableString(chapterTitle)
		r.Subject = nullableString(subject)
		r.CoverURL = nullableString(coverURL)
		if err := json.Unmarshal([]byte(topics), &r.Topics); err != nil {
			r.Topics = nil
		}
		if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
			r.Keywords = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
