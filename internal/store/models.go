package store

import "time"

// BookIndexStatus tracks the book-level indexing lifecycle.
// Transitions are owned exclusively by the indexing orchestrator.
type BookIndexStatus string

const (
	BookNotIndexed BookIndexStatus = "not_indexed"
	BookIndexing   BookIndexStatus = "indexing"
	BookIndexed    BookIndexStatus = "indexed"
	BookIndexError BookIndexStatus = "error"
)

// PageType is the classifier's verdict for a scanned page.
type PageType string

const (
	PageTypeNumbered PageType = "numbered"
	PageTypeCover    PageType = "cover"
	PageTypeBlank    PageType = "blank"
	PageTypeUnknown  PageType = "unknown"
)

// EntryStatus tracks the per-page index entry lifecycle. The entry table is
// the durable job ledger: a resumed run skips completed entries and retries
// the rest.
type EntryStatus string

const (
	EntryPending    EntryStatus = "pending"
	EntryProcessing EntryStatus = "processing"
	EntryCompleted  EntryStatus = "completed"
	EntryError      EntryStatus = "error"
)

// Book is one digitized book in the library.
type Book struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	GradeLevel  string          `json:"grade_level"`
	Subject     *string         `json:"subject,omitempty"`
	CoverURL    *string         `json:"cover_url,omitempty"`
	IsActive    bool            `json:"is_active"`
	IndexStatus BookIndexStatus `json:"index_status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Page is one scanned page of a book. The detection_* fields are owned by
// the page classifier; once DetectionCompleted is set they are immutable
// unless explicitly reset.
type Page struct {
	ID                  string   `json:"id"`
	BookID              string   `json:"book_id"`
	PageNumber          int      `json:"page_number"`
	ImageURL            string   `json:"image_url"`
	ThumbnailURL        *string  `json:"thumbnail_url,omitempty"`
	DetectedPageNumber  *string  `json:"detected_page_number,omitempty"`
	PageType            PageType `json:"page_type"`
	DetectionConfidence float64  `json:"detection_confidence"`
	DetectionCompleted  bool     `json:"detection_completed"`
}

// IndexEntry is the derived, searchable metadata record for one page of one
// book. Keyed by the unique (book_id, page_id) pair so upserts are atomic and
// idempotent by construction.
type IndexEntry struct {
	BookID        string      `json:"book_id"`
	PageID        string      `json:"page_id"`
	PageNumber    int         `json:"page_number"`
	ExtractedText string      `json:"extracted_text"`
	Topics        []string    `json:"topics"`
	Keywords      []string    `json:"keywords"`
	ChapterTitle  *string     `json:"chapter_title,omitempty"`
	Summary       string      `json:"summary"`
	IndexStatus   EntryStatus `json:"index_status"`
	IndexedAt     *time.Time  `json:"indexed_at,omitempty"`
}

// SearchRow is one index entry joined with its book fields, as returned by
// either search path. The query engine applies snippeting, scoring, and
// grouping on top.
type SearchRow struct {
	BookID        string
	PageID        string
	PageNumber    int
	ExtractedText string
	Summary       string
	ChapterTitle  *string
	Topics        []string
	Keywords      []string
	BookTitle     string
	GradeLevel    string
	Subject       *string
	CoverURL      *string
}
