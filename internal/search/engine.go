// Package search implements the query engine over the page index: ranked
// retrieval with a substring-match fallback, snippet extraction,
// highlighting, relevance scoring, and per-book grouping.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"satchel/internal/store"
)

// ErrQueryTooShort rejects queries shorter than 2 characters after trimming.
var ErrQueryTooShort = errors.New("search query must be at least 2 characters")

// DefaultLimit bounds the number of index rows considered per query.
const DefaultLimit = 50

// Index is the retrieval surface the engine needs from the store. Both
// paths return the same row shape; the engine's post-processing is
// identical regardless of which one served the query.
type Index interface {
	SearchRanked(ctx context.Context, query string, limit int) ([]store.SearchRow, error)
	SearchFallback(ctx context.Context, query string, limit int) ([]store.SearchRow, error)
}

// Request is a free-text search with optional book filters.
type Request struct {
	Query      string
	GradeLevel string
	Subject    string
	Limit      int
}

// Match is one matching page within a book.
type Match struct {
	PageNumber     int      `json:"page_number"`
	PageID         string   `json:"page_id"`
	Snippet        string   `json:"snippet"`
	Topics         []string `json:"topics"`
	Keywords       []string `json:"keywords"`
	ChapterTitle   *string  `json:"chapter_title"`
	RelevanceScore float64  `json:"relevance_score"`
}

// BookResult groups a book's matches, sorted by descending relevance.
type BookResult struct {
	BookID     string  `json:"book_id"`
	BookTitle  string  `json:"book_title"`
	CoverURL   *string `json:"cover_url"`
	GradeLevel string  `json:"grade_level"`
	Subject    *string `json:"subject"`
	Matches    []Match `json:"matches"`
}

// Response is the grouped, ranked result set. TotalMatches counts matches
// across all books, not books.
type Response struct {
	Results      []BookResult `json:"results"`
	TotalMatches int          `json:"total_matches"`
	BooksCount   int          `json:"books_count"`
}

// Engine answers search queries. It holds no cross-request state.
type Engine struct {
	index  Index
	logger *slog.Logger
}

// New creates an Engine.
func New(index Index, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		index:  index,
		logger: logger.With("component", "search"),
	}
}

// Search runs one query: ranked retrieval first, falling back to substring
// matching when the ranked path is unavailable or fails. A primary-path
// error is not user-visible; only a fallback failure is surfaced.
func (e *Engine) Search(ctx context.Context, req *Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if utf8.RuneCountInString(query) < 2 {
		return nil, ErrQueryTooShort
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := e.index.SearchRanked(ctx, query, limit)
	if err != nil {
		if !errors.Is(err, store.ErrRankedSearchUnavailable) {
			e.logger.Warn("ranked search failed, using fallback", "error", err)
		}
		rows, err = e.index.SearchFallback(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
	}

	lowerQuery := strings.ToLower(query)
	highlighter := newHighlighter(query)

	// Group matches by book, preserving first-seen order until the final
	// sort by top score.
	bookOrder := make([]string, 0)
	bookMap := make(map[string]*BookResult)

	for i := range rows {
		row := &rows[i]

		// Filters apply here regardless of what the storage layer did.
		if req.GradeLevel != "" && row.GradeLevel != req.GradeLevel {
			continue
		}
		if req.Subject != "" && (row.Subject == nil || *row.Subject != req.Subject) {
			continue
		}

		snippet := extractSnippet(row, lowerQuery)
		match := Match{
			PageNumber:     row.PageNumber,
			PageID:         row.PageID,
			Snippet:        highlighter.highlight(snippet),
			Topics:         row.Topics,
			Keywords:       row.Keywords,
			ChapterTitle:   row.ChapterTitle,
			RelevanceScore: scoreRow(row, lowerQuery),
		}

		br, ok := bookMap[row.BookID]
		if !ok {
			br = &BookResult{
				BookID:     row.BookID,
				BookTitle:  row.BookTitle,
				CoverURL:   row.CoverURL,
				GradeLevel: row.GradeLevel,
				Subject:    row.Subject,
			}
			bookMap[row.BookID] = br
			bookOrder = append(bookOrder, row.BookID)
		}
		br.Matches = append(br.Matches, match)
	}

	results := make([]BookResult, 0, len(bookOrder))
	totalMatches := 0
	for _, id := range bookOrder {
		br := bookMap[id]
		sort.SliceStable(br.Matches, func(i, j int) bool {
			return br.Matches[i].RelevanceScore > br.Matches[j].RelevanceScore
		})
		totalMatches += len(br.Matches)
		results = append(results, *br)
	}

	// Books ranked by their single best match.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Matches[0].RelevanceScore > results[j].Matches[0].RelevanceScore
	})

	return &Response{
		Results:      results,
		TotalMatches: totalMatches,
		BooksCount:   len(results),
	}, nil
}
