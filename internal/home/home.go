// Package home manages the satchel home directory layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the satchel home directory.
	DefaultDirName = ".satchel"

	// DatabaseFileName is the SQLite database file name.
	DatabaseFileName = "satchel.db"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the satchel home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.satchel).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DatabasePath returns the path to the SQLite database file.
func (d *Dir) DatabasePath() string {
	return filepath.Join(d.path, DatabaseFileName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// PageImagesDir returns the directory holding page images for a book.
func (d *Dir) PageImagesDir(bookID string) string {
	return filepath.Join(d.path, "page_images", bookID)
}

// PageImagePath returns the path to a specific page image.
// Page numbers are 1-based and zero-padded for stable sorting.
func (d *Dir) PageImagePath(bookID string, pageNum int) string {
	return filepath.Join(d.PageImagesDir(bookID), fmt.Sprintf("page_%04d.png", pageNum))
}

// EnsureExists creates the home directory if it doesn't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}
	return nil
}

// EnsurePageImagesDir creates the page images directory for a book.
func (d *Dir) EnsurePageImagesDir(bookID string) error {
	if err := os.MkdirAll(d.PageImagesDir(bookID), 0o755); err != nil {
		return fmt.Errorf("failed to create page images directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
