package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaultsToUserHome(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no user home dir: %v", err)
	}
	if want := filepath.Join(userHome, DefaultDirName); d.Path() != want {
		t.Errorf("Path() = %q, want %q", d.Path(), want)
	}
}

func TestDirPaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "satchel-home")
	d, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if d.DatabasePath() != filepath.Join(root, DatabaseFileName) {
		t.Errorf("DatabasePath() = %q", d.DatabasePath())
	}
	if d.ConfigPath() != filepath.Join(root, ConfigFileName) {
		t.Errorf("ConfigPath() = %q", d.ConfigPath())
	}
	if want := filepath.Join(root, "page_images", "book-1"); d.PageImagesDir("book-1") != want {
		t.Errorf("PageImagesDir() = %q, want %q", d.PageImagesDir("book-1"), want)
	}
}

func TestPageImagePathZeroPadding(t *testing.T) {
	d, _ := New(filepath.Join(t.TempDir(), "h"))

	tests := []struct {
		pageNum int
		want    string
	}{
		{1, "page_0001.png"},
		{42, "page_0042.png"},
		{1234, "page_1234.png"},
		{99999, "page_99999.png"},
	}
	for _, tt := range tests {
		got := filepath.Base(d.PageImagePath("book-1", tt.pageNum))
		if got != tt.want {
			t.Errorf("PageImagePath(%d) base = %q, want %q", tt.pageNum, got, tt.want)
		}
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "home")
	d, _ := New(root)

	if d.Exists() {
		t.Fatal("Exists() = true before creation")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if !d.Exists() {
		t.Error("Exists() = false after creation")
	}

	// Idempotent.
	if err := d.EnsureExists(); err != nil {
		t.Errorf("EnsureExists() second call error = %v", err)
	}
}

func TestEnsurePageImagesDir(t *testing.T) {
	d, _ := New(filepath.Join(t.TempDir(), "h"))
	if err := d.EnsurePageImagesDir("book-1"); err != nil {
		t.Fatalf("EnsurePageImagesDir() error = %v", err)
	}
	info, err := os.Stat(d.PageImagesDir("book-1"))
	if err != nil || !info.IsDir() {
		t.Errorf("page images dir missing after EnsurePageImagesDir: %v", err)
	}
}

func TestConfigExists(t *testing.T) {
	d, _ := New(t.TempDir())
	if d.ConfigExists() {
		t.Fatal("ConfigExists() = true with no file")
	}
	if err := os.WriteFile(d.ConfigPath(), []byte("server:\n  port: \"9090\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if !d.ConfigExists() {
		t.Error("ConfigExists() = false after writing config")
	}
}
