package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreatePage inserts a new page record. Page numbers are 1-based and unique
// within a book.
func (s *Store) CreatePage(ctx context.Context, p *Page) error {
	if p.PageType == "" {
		p.PageType = PageTypeUnknown
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO book_pages(id, book_id, page_number, image_url, thumbnail_url, page_type)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		p.ID, p.BookID, p.PageNumber, p.ImageURL, p.ThumbnailURL, string(p.PageType),
	)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

// GetPage returns a page by id.
func (s *Store) GetPage(ctx context.Context, id string) (*Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, book_id, page_number, image_url, thumbnail_url,
		        detected_page_number, page_type, detection_confidence, detection_completed
		 FROM book_pages WHERE id = ?`, id)
	return scanPage(row)
}

// ListPages returns a book's pages ordered by page number. startPage and
// endPage bound the range when > 0; zero means unbounded on that side.
func (s *Store) ListPages(ctx context.Context, bookID string, startPage, endPage int) ([]*Page, error) {
	query := `SELECT id, book_id, page_number, image_url, thumbnail_url,
	                 detected_page_number, page_type, detection_confidence, detection_completed
	          FROM book_pages WHERE book_id = ?`
	args := []any{bookID}
	if startPage > 0 {
		query += ` AND page_number >= ?`
		args = append(args, startPage)
	}
	if endPage > 0 {
		query += ` AND page_number <= ?`
		args = append(args, endPage)
	}
	query += ` ORDER BY page_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// SavePageDetection persists the classifier result and marks detection
// completed. Classification is attempted at most once per page: after this
// write the classifier returns the cached fields without calling the vision
// service again.
func (s *Store) SavePageDetection(ctx context.Context, pageID string, detectedNumber *string, pageType PageType, confidence float64) error {
	return s.ledgerWrite(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE book_pages
			 SET detected_page_number = ?, page_type = ?, detection_confidence = ?, detection_completed = 1
			 WHERE id = ?`,
			detectedNumber, string(pageType), confidence, pageID,
		)
		if err != nil {
			return fmt.Errorf("failed to save page detection: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ResetPageDetection clears the cached classifier fields so an external
// re-index request can force a fresh classification.
func (s *Store) ResetPageDetection(ctx context.Context, pageID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE book_pages
		 SET detected_page_number = NULL, page_type = 'unknown',
		     detection_confidence = 0, detection_completed = 0
		 WHERE id = ?`, pageID,
	)
	if err != nil {
		return fmt.Errorf("failed to reset page detection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPage(row scanner) (*Page, error) {
	var p Page
	var thumbnailURL, detectedNumber sql.NullString
	var detectionCompleted int

	err := row.Scan(&p.ID, &p.BookID, &p.PageNumber, &p.ImageURL, &thumbnailURL,
		&detectedNumber, (*string)(&p.PageType), &p.DetectionConfidence, &detectionCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan page: %w", err)
	}

	p.ThumbnailURL = nullableString(thumbnailURL)
	p.DetectedPageNumber = nullableString(detectedNumber)
	p.DetectionCompleted = detectionCompleted != 0
	return &p, nil
}
