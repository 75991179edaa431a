package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"satchel/internal/store"
)

// fakeIndex scripts both retrieval paths independently.
type fakeIndex struct {
	rankedRows   []store.SearchRow
	rankedErr    error
	fallbackRows []store.SearchRow
	fallbackErr  error

	rankedCalls   int
	fallbackCalls int
	lastLimit     int
}

func (f *fakeIndex) SearchRanked(_ context.Context, _ string, limit int) ([]store.SearchRow, error) {
	f.rankedCalls++
	f.lastLimit = limit
	return f.rankedRows, f.rankedErr
}

func (f *fakeIndex) SearchFallback(_ context.Context, _ string, limit int) ([]store.SearchRow, error) {
	f.fallbackCalls++
	f.lastLimit = limit
	return f.fallbackRows, f.fallbackErr
}

func strPtr(s string) *string { return &s }

func row(bookID string, pageNum int, mutate func(*store.SearchRow)) store.SearchRow {
	r := store.SearchRow{
		BookID:     bookID,
		PageID:     bookID + "-p" + string(rune('0'+pageNum)),
		PageNumber: pageNum,
		Summary:    "A page about volcanoes and rock formation.",
		BookTitle:  "Earth Science",
		GradeLevel: "Grade 5",
		Subject:    strPtr("Science"),
		Topics:     []string{},
		Keywords:   []string{},
	}
	if mutate != nil {
		mutate(&r)
	}
	return r
}

func TestSearchQueryTooShort(t *testing.T) {
	e := New(&fakeIndex{}, nil)
	for _, q := range []string{"", "a", "  a  ", "\t"} {
		if _, err := e.Search(context.Background(), &Request{Query: q}); !errors.Is(err, ErrQueryTooShort) {
			t.Errorf("Search(%q) error = %v, want ErrQueryTooShort", q, err)
		}
	}

	// Two runes is enough, even multibyte ones.
	idx := &fakeIndex{}
	if _, err := New(idx, nil).Search(context.Background(), &Request{Query: "日本"}); err != nil {
		t.Errorf("Search(two-rune query) error = %v", err)
	}
}

func TestSearchUsesRankedPath(t *testing.T) {
	idx := &fakeIndex{rankedRows: []store.SearchRow{row("book-1", 1, nil)}}
	e := New(idx, nil)

	resp, err := e.Search(context.Background(), &Request{Query: "volcanoes"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if idx.rankedCalls != 1 || idx.fallbackCalls != 0 {
		t.Errorf("ranked/fallback calls = %d/%d, want 1/0", idx.rankedCalls, idx.fallbackCalls)
	}
	if resp.TotalMatches != 1 || resp.BooksCount != 1 {
		t.Errorf("TotalMatches/BooksCount = %d/%d, want 1/1", resp.TotalMatches, resp.BooksCount)
	}
	if idx.lastLimit != DefaultLimit {
		t.Errorf("limit = %d, want DefaultLimit", idx.lastLimit)
	}
}

func TestSearchFallsBackOnRankedError(t *testing.T) {
	tests := []struct {
		name      string
		rankedErr error
	}{
		{"ranked unavailable", store.ErrRankedSearchUnavailable},
		{"ranked query error", errors.New("fts syntax error")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &fakeIndex{
				rankedErr:    tt.rankedErr,
				fallbackRows: []store.SearchRow{row("book-1", 1, nil)},
			}
			resp, err := New(idx, nil).Search(context.Background(), &Request{Query: "volcanoes"})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if idx.fallbackCalls != 1 {
				t.Errorf("fallback calls = %d, want 1", idx.fallbackCalls)
			}
			if resp.TotalMatches != 1 {
				t.Errorf("TotalMatches = %d, want 1", resp.TotalMatches)
			}
		})
	}
}

func TestSearchFallbackErrorSurfaces(t *testing.T) {
	idx := &fakeIndex{
		rankedErr:   store.ErrRankedSearchUnavailable,
		fallbackErr: errors.New("db closed"),
	}
	if _, err := New(idx, nil).Search(context.Background(), &Request{Query: "volcanoes"}); err == nil {
		t.Fatal("Search() = nil error, want fallback failure surfaced")
	}
}

func TestSearchFilters(t *testing.T) {
	rows := []store.SearchRow{
		row("book-1", 1, nil),
		row("book-2", 1, func(r *store.SearchRow) { r.GradeLevel = "Grade 8" }),
		row("book-3", 1, func(r *store.SearchRow) { r.Subject = strPtr("History") }),
		row("book-4", 1, func(r *store.SearchRow) { r.Subject = nil }),
	}

	tests := []struct {
		name      string
		req       Request
		wantBooks []string
	}{
		{"no filters", Request{Query: "volcanoes"}, []string{"book-1", "book-2", "book-3", "book-4"}},
		{"grade filter", Request{Query: "volcanoes", GradeLevel: "Grade 5"}, []string{"book-1", "book-3", "book-4"}},
		{"subject filter", Request{Query: "volcanoes", Subject: "Science"}, []string{"book-1", "book-2"}},
		{"both filters", Request{Query: "volcanoes", GradeLevel: "Grade 5", Subject: "History"}, []string{"book-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &fakeIndex{rankedRows: rows}
			resp, err := New(idx, nil).Search(context.Background(), &tt.req)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			var got []string
			for _, br := range resp.Results {
				got = append(got, br.BookID)
			}
			if len(got) != len(tt.wantBooks) {
				t.Fatalf("books = %v, want %v", got, tt.wantBooks)
			}
			want := make(map[string]bool, len(tt.wantBooks))
			for _, id := range tt.wantBooks {
				want[id] = true
			}
			for _, id := range got {
				if !want[id] {
					t.Errorf("unexpected book %q in results", id)
				}
			}
		})
	}
}

func TestSearchGroupsAndRanks(t *testing.T) {
	// book-2's page 7 carries a chapter-title match (3.0), outranking all
	// of book-1's matches; within book-1 the topic match (2.0) beats the
	// keyword match (1.5).
	rows := []store.SearchRow{
		row("book-1", 1, func(r *store.SearchRow) { r.Keywords = []string{"volcanoes"} }),
		row("book-2", 7, func(r *store.SearchRow) {
			r.BookTitle = "Geology"
			r.ChapterTitle = strPtr("Volcanoes and Earthquakes")
		}),
		row("book-1", 3, func(r *store.SearchRow) { r.Topics = []string{"Volcanoes"} }),
	}
	idx := &fakeIndex{rankedRows: rows}

	resp, err := New(idx, nil).Search(context.Background(), &Request{Query: "volcanoes"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if resp.BooksCount != 2 || resp.TotalMatches != 3 {
		t.Fatalf("BooksCount/TotalMatches = %d/%d, want 2/3", resp.BooksCount, resp.TotalMatches)
	}

	// Each book appears exactly once.
	seen := map[string]bool{}
	for _, br := range resp.Results {
		if seen[br.BookID] {
			t.Fatalf("book %q appears twice", br.BookID)
		}
		seen[br.BookID] = true
	}

	if resp.Results[0].BookID != "book-2" {
		t.Errorf("top book = %q, want book-2 (best single match wins)", resp.Results[0].BookID)
	}
	book1 := resp.Results[1]
	if book1.Matches[0].PageNumber != 3 || book1.Matches[1].PageNumber != 1 {
		t.Errorf("book-1 match order = %d,%d; want 3,1", book1.Matches[0].PageNumber, book1.Matches[1].PageNumber)
	}
}

func TestSearchSnippetIsHighlighted(t *testing.T) {
	rows := []store.SearchRow{
		row("book-1", 1, func(r *store.SearchRow) {
			r.Summary = "Volcanoes form where magma reaches the surface."
		}),
	}
	idx := &fakeIndex{rankedRows: rows}

	resp, err := New(idx, nil).Search(context.Background(), &Request{Query: "volcanoes"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	snippet := resp.Results[0].Matches[0].Snippet
	if !strings.Contains(snippet, "**Volcanoes**") {
		t.Errorf("snippet = %q, want bolded query term", snippet)
	}
}

func TestSearchEmptyResults(t *testing.T) {
	resp, err := New(&fakeIndex{}, nil).Search(context.Background(), &Request{Query: "nothing here"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.TotalMatches != 0 || resp.BooksCount != 0 || len(resp.Results) != 0 {
		t.Errorf("got %+v, want empty response", resp)
	}
}
