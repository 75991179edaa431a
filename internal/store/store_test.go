package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBook(t *testing.T, s *Store, id string) *Book {
	t.Helper()
	subject := "Science"
	b := &Book{
		ID:         id,
		Title:      "Grade 5 Science",
		GradeLevel: "Grade 5",
		Subject:    &subject,
		IsActive:   true,
	}
	if err := s.CreateBook(context.Background(), b); err != nil {
		t.Fatalf("CreateBook() error = %v", err)
	}
	return b
}

func seedPage(t *testing.T, s *Store, bookID, pageID string, pageNumber int) *Page {
	t.Helper()
	p := &Page{
		ID:         pageID,
		BookID:     bookID,
		PageNumber: pageNumber,
		ImageURL:   "https://example.com/" + pageID + ".png",
	}
	if err := s.CreatePage(context.Background(), p); err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	return p
}

func TestBookRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook() error = %v", err)
	}
	if got.Title != "Grade 5 Science" || got.GradeLevel != "Grade 5" {
		t.Errorf("GetBook() = %+v", got)
	}
	if got.Subject == nil || *got.Subject != "Science" {
		t.Errorf("Subject = %v, want Science", got.Subject)
	}
	if got.IndexStatus != BookNotIndexed {
		t.Errorf("IndexStatus = %q, want %q", got.IndexStatus, BookNotIndexed)
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}

	if _, err := s.GetBook(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBook(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListBooksActiveOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")
	inactive := &Book{ID: "book-2", Title: "Archived Atlas", GradeLevel: "Grade 6"}
	if err := s.CreateBook(ctx, inactive); err != nil {
		t.Fatalf("CreateBook() error = %v", err)
	}

	all, err := s.ListBooks(ctx, false)
	if err != nil {
		t.Fatalf("ListBooks(false) error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListBooks(false) returned %d books, want 2", len(all))
	}

	active, err := s.ListBooks(ctx, true)
	if err != nil {
		t.Fatalf("ListBooks(true) error = %v", err)
	}
	if len(active) != 1 || active[0].ID != "book-1" {
		t.Errorf("ListBooks(true) = %+v, want only book-1", active)
	}
}

func TestListPagesRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")
	for i := 1; i <= 5; i++ {
		seedPage(t, s, "book-1", pageID(i), i)
	}

	tests := []struct {
		name       string
		start, end int
		wantPages  []int
	}{
		{"unbounded", 0, 0, []int{1, 2, 3, 4, 5}},
		{"lower bound", 3, 0, []int{3, 4, 5}},
		{"upper bound", 0, 2, []int{1, 2}},
		{"both bounds", 2, 4, []int{2, 3, 4}},
		{"empty range", 6, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := s.ListPages(ctx, "book-1", tt.start, tt.end)
			if err != nil {
				t.Fatalf("ListPages() error = %v", err)
			}
			if len(pages) != len(tt.wantPages) {
				t.Fatalf("ListPages() returned %d pages, want %d", len(pages), len(tt.wantPages))
			}
			for i, p := range pages {
				if p.PageNumber != tt.wantPages[i] {
					t.Errorf("page[%d].PageNumber = %d, want %d", i, p.PageNumber, tt.wantPages[i])
				}
			}
		})
	}
}

func pageID(n int) string {
	return "page-" + string(rune('0'+n))
}

func TestClaimIndexing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")

	if err := s.ClaimIndexing(ctx, "book-1", false); err != nil {
		t.Fatalf("first ClaimIndexing() error = %v", err)
	}

	if err := s.ClaimIndexing(ctx, "book-1", false); !errors.Is(err, ErrAlreadyIndexing) {
		t.Errorf("second ClaimIndexing() error = %v, want ErrAlreadyIndexing", err)
	}

	// force recovers a stale claim
	if err := s.ClaimIndexing(ctx, "book-1", true); err != nil {
		t.Errorf("forced ClaimIndexing() error = %v", err)
	}

	if err := s.ClaimIndexing(ctx, "missing", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("ClaimIndexing(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSetBookIndexStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")

	if err := s.SetBookIndexStatus(ctx, "book-1", BookIndexed); err != nil {
		t.Fatalf("SetBookIndexStatus() error = %v", err)
	}
	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook() error = %v", err)
	}
	if got.IndexStatus != BookIndexed {
		t.Errorf("IndexStatus = %q, want %q", got.IndexStatus, BookIndexed)
	}

	if err := s.SetBookIndexStatus(ctx, "missing", BookIndexed); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetBookIndexStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPageDetectionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")
	seedPage(t, s, "book-1", "page-1", 1)

	detected := "12"
	if err := s.SavePageDetection(ctx, "page-1", &detected, PageTypeNumbered, 0.95); err != nil {
		t.Fatalf("SavePageDetection() error = %v", err)
	}

	got, err := s.GetPage(ctx, "page-1")
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if !got.DetectionCompleted {
		t.Error("DetectionCompleted = false after save")
	}
	if got.DetectedPageNumber == nil || *got.DetectedPageNumber != "12" {
		t.Errorf("DetectedPageNumber = %v, want 12", got.DetectedPageNumber)
	}
	if got.PageType != PageTypeNumbered || got.DetectionConfidence != 0.95 {
		t.Errorf("PageType/Confidence = %q/%v", got.PageType, got.DetectionConfidence)
	}

	if err := s.ResetPageDetection(ctx, "page-1"); err != nil {
		t.Fatalf("ResetPageDetection() error = %v", err)
	}
	got, err = s.GetPage(ctx, "page-1")
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if got.DetectionCompleted || got.DetectedPageNumber != nil ||
		got.PageType != PageTypeUnknown || got.DetectionConfidence != 0 {
		t.Errorf("page after reset = %+v", got)
	}
}

func TestUpsertEntryStatusPreservesMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")
	seedPage(t, s, "book-1", "page-1", 1)

	now := time.Now().UTC()
	chapter := "Plants"
	entry := &IndexEntry{
		BookID:       "book-1",
		PageID:       "page-1",
		PageNumber:   1,
		Topics:       []string{"Photosynthesis"},
		Keywords:     []string{"chlorophyll", "sunlight"},
		ChapterTitle: &chapter,
		Summary:      "How plants make food.",
		IndexStatus:  EntryCompleted,
		IndexedAt:    &now,
	}
	if err := s.UpsertEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertEntry() error = %v", err)
	}

	// A later status-only upsert must not clobber the metadata columns.
	if err := s.UpsertEntryStatus(ctx, "book-1", "page-1", 1, EntryProcessing); err != nil {
		t.Fatalf("UpsertEntryStatus() error = %v", err)
	}

	got, err := s.GetEntry(ctx, "book-1", "page-1")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.IndexStatus != EntryProcessing {
		t.Errorf("IndexStatus = %q, want %q", got.IndexStatus, EntryProcessing)
	}
	if got.Summary != "How plants make food." {
		t.Errorf("Summary = %q, metadata was clobbered", got.Summary)
	}
	if len(got.Topics) != 1 || got.Topics[0] != "Photosynthesis" {
		t.Errorf("Topics = %v", got.Topics)
	}
	if got.ChapterTitle == nil || *got.ChapterTitle != "Plants" {
		t.Errorf("ChapterTitle = %v", got.ChapterTitle)
	}
}

func TestUpsertEntryIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")
	seedPage(t, s, "book-1", "page-1", 1)

	now := time.Now().UTC()
	entry := &IndexEntry{
		BookID:      "book-1",
		PageID:      "page-1",
		PageNumber:  1,
		Summary:     "First pass.",
		IndexStatus: EntryCompleted,
		IndexedAt:   &now,
	}
	if err := s.UpsertEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertEntry() error = %v", err)
	}

	entry.Summary = "Second pass."
	if err := s.UpsertEntry(ctx, entry); err != nil {
		t.Fatalf("second UpsertEntry() error = %v", err)
	}

	entries, err := s.ListEntries(ctx, "book-1")
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListEntries() returned %d entries, want 1 (upsert must not duplicate)", len(entries))
	}
	if entries[0].Summary != "Second pass." {
		t.Errorf("Summary = %q, want updated value", entries[0].Summary)
	}
}

func seedCompletedEntry(t *testing.T, s *Store, bookID, pageID string, pageNumber int, text, summary string) {
	t.Helper()
	now := time.Now().UTC()
	entry := &IndexEntry{
		BookID:        bookID,
		PageID:        pageID,
		PageNumber:    pageNumber,
		ExtractedText: text,
		Topics:        []string{"Biology"},
		Keywords:      []string{"plants"},
		Summary:       summary,
		IndexStatus:   EntryCompleted,
		IndexedAt:     &now,
	}
	if err := s.UpsertEntry(context.Background(), entry); err != nil {
		t.Fatalf("UpsertEntry() error = %v", err)
	}
}

func TestSearchRanked(t *testing.T) {
	s := newTestStore(t)
	if !s.RankedSearchEnabled() {
		t.Skip("FTS5 unavailable in this build")
	}
	ctx := context.Background()

	seedBook(t, s, "book-1")
	seedPage(t, s, "book-1", "page-1", 1)
	seedPage(t, s, "book-1", "page-2", 2)
	seedCompletedEntry(t, s, "book-1", "page-1", 1,
		"Photosynthesis converts sunlight into energy.", "Plants and light.")
	seedCompletedEntry(t, s, "book-1", "page-2", 2,
		"The water cycle moves moisture around the planet.", "Rain and evaporation.")

	rows, err := s.SearchRanked(ctx, "photosynthesis", 10)
	if err != nil {
		t.Fatalf("SearchRanked() error = %v", err)
	}
	if len(rows) != 1 || rows[0].PageID != "page-1" {
		t.Fatalf("SearchRanked() = %+v, want page-1 only", rows)
	}
	if rows[0].BookTitle != "Grade 5 Science" {
		t.Errorf("BookTitle = %q", rows[0].BookTitle)
	}
}

func TestSearchRankedSyncOnReupsert(t *testing.T) {
	s := newTestStore(t)
	if !s.RankedSearchEnabled() {
		t.Skip("FTS5 unavailable in this build")
	}
	ctx := context.Background()

	seedBook(t, s, "book-1")
	seedPage(t, s, "book-1", "page-1", 1)
	seedCompletedEntry(t, s, "book-1", "page-1", 1, "All about volcanoes.", "Volcanoes.")

	// Re-upsert with new text: the FTS mirror must follow, not accumulate.
	seedCompletedEntry(t, s, "book-1", "page-1", 1, "All about glaciers.", "Glaciers.")

	rows, err := s.SearchRanked(ctx, "volcanoes", 10)
	if err != nil {
		t.Fatalf("SearchRanked(volcanoes) error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("stale FTS row still matches: %+v", rows)
	}

	rows, err = s.SearchRanked(ctx, "glaciers", 10)
	if err != nil {
		t.Fatalf("SearchRanked(glaciers) error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("SearchRanked(glaciers) returned %d rows, want 1", len(rows))
	}
}

func TestSearchExcludesIncompleteAndInactive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")
	inactive := &Book{ID: "book-2", Title: "Old Book", GradeLevel: "Grade 5"}
	if err := s.CreateBook(ctx, inactive); err != nil {
		t.Fatalf("CreateBook() error = %v", err)
	}

	seedPage(t, s, "book-1", "page-1", 1)
	seedPage(t, s, "book-2", "page-2", 1)

	// Pending entry in the active book.
	if err := s.UpsertEntryStatus(ctx, "book-1", "page-1", 1, EntryProcessing); err != nil {
		t.Fatalf("UpsertEntryStatus() error = %v", err)
	}
	// Completed entry, but the book is inactive.
	seedCompletedEntry(t, s, "book-2", "page-2", 1, "Photosynthesis everywhere.", "Plants.")

	rows, err := s.SearchFallback(ctx, "photosynthesis", 10)
	if err != nil {
		t.Fatalf("SearchFallback() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("SearchFallback() = %+v, want no rows", rows)
	}

	if s.RankedSearchEnabled() {
		rows, err = s.SearchRanked(ctx, "photosynthesis", 10)
		if err != nil {
			t.Fatalf("SearchRanked() error = %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("SearchRanked() = %+v, want no rows", rows)
		}
	}
}

func TestSearchFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedBook(t, s, "book-1")
	seedPage(t, s, "book-1", "page-1", 1)
	seedPage(t, s, "book-1", "page-2", 2)
	seedCompletedEntry(t, s, "book-1", "page-1", 1,
		"Photosynthesis converts sunlight.", "Plants.")
	seedCompletedEntry(t, s, "book-1", "page-2", 2,
		"", "A chapter about PHOTOSYNTHESIS.")

	rows, err := s.SearchFallback(ctx, "Photosynthesis", 10)
	if err != nil {
		t.Fatalf("SearchFallback() error = %v", err)
	}
	// Case-insensitive, matches extracted text and summary.
	if len(rows) != 2 {
		t.Fatalf("SearchFallback() returned %d rows, want 2", len(rows))
	}
}

func TestFTSMatchQueryQuoting(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photosynthesis", `"photosynthesis"`},
		{"water cycle", `"water" "cycle"`},
		{`"quoted"`, `"""quoted"""`},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := ftsMatchQuery(tt.in); got != tt.want {
			t.Errorf("ftsMatchQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
