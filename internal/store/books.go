package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateBook inserts a new book record.
func (s *Store) CreateBook(ctx context.Context, b *Book) error {
	if b.IndexStatus == "" {
		b.IndexStatus = BookNotIndexed
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO books(id, title, grade_level, subject, cover_url, is_active, index_status, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.GradeLevel, b.Subject, b.CoverURL,
		boolToInt(b.IsActive), string(b.IndexStatus), b.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetBook returns a book by id.
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, grade_level, subject, cover_url, is_active, index_status, created_at
		 FROM books WHERE id = ?`, id)
	return scanBook(row)
}

// ListBooks returns all books ordered by title. When activeOnly is set,
// inactive books are excluded.
func (s *Store) ListBooks(ctx context.Context, activeOnly bool) ([]*Book, error) {
	query := `SELECT id, title, grade_level, subject, cover_url, is_active, index_status, created_at
		 FROM books`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY title`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// ClaimIndexing atomically transitions a book to the indexing status. The
// conditional update acts as a single-flight claim: a second concurrent
// start request fails with ErrAlreadyIndexing instead of racing on page
// upserts. force bypasses the claim to recover a run that died while
// holding it.
func (s *Store) ClaimIndexing(ctx context.Context, bookID string, force bool) error {
	query := `UPDATE books SET index_status = ? WHERE id = ?`
	args := []any{string(BookIndexing), bookID}
	if !force {
		query += ` AND index_status != ?`
		args = append(args, string(BookIndexing))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to claim indexing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		// Either the book doesn't exist or the claim is held.
		if _, err := s.GetBook(ctx, bookID); err != nil {
			return err
		}
		return ErrAlreadyIndexing
	}
	return nil
}

// SetBookIndexStatus updates the book-level index status.
func (s *Store) SetBookIndexStatus(ctx context.Context, bookID string, status BookIndexStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET index_status = ? WHERE id = ?`, string(status), bookID)
	if err != nil {
		return fmt.Errorf("failed to update book index status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (*Book, error) {
	var b Book
	var subject, coverURL sql.NullString
	var isActive int
	var createdAt string

	err := row.Scan(&b.ID, &b.Title, &b.GradeLevel, &subject, &coverURL,
		&isActive, (*string)(&b.IndexStatus), &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan book: %w", err)
	}

	b.Subject = nullableString(subject)
	b.CoverURL = nullableString(coverURL)
	b.IsActive = isActive != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		b.CreatedAt = t
	}
	return &b, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
