// Package ingest handles book scan ingestion from PDF files. It is the
// reference collaborator that produces the Book and Page records the
// classifier and orchestrator operate on.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"satchel/internal/home"
	"satchel/internal/store"
)

// Request contains the parameters for ingesting book scans.
type Request struct {
	PDFPaths   []string     // PDF file paths (will be sorted by numeric suffix)
	Title      string       // Book title (optional, derived from filename if empty)
	GradeLevel string       // Grade level, e.g. "Grade 5"
	Subject    string       // Subject (optional)
	Logger     *slog.Logger // Optional logger for progress updates
}

// Result contains the result of a successful ingest operation.
type Result struct {
	BookID    string
	Title     string
	PageCount int
}

// Ingest extracts pages from PDFs, writes per-page images under the home
// directory, and creates the Book and Page records.
func Ingest(ctx context.Context, st *store.Store, homeDir *home.Dir, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	if len(req.PDFPaths) == 0 {
		return nil, fmt.Errorf("no PDF paths provided")
	}

	for _, p := range req.PDFPaths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("PDF not found: %s", p)
		}
	}

	// Sort PDFs by numeric suffix (e.g., book-1.pdf, book-2.pdf)
	sortedPaths := sortPDFsByNumber(req.PDFPaths)
	log.Info("starting ingest", "pdfs", len(sortedPaths), "title", req.Title)

	title := req.Title
	if title == "" {
		title = deriveTitle(sortedPaths[0])
	}

	bookID := uuid.New().String()

	if err := homeDir.EnsurePageImagesDir(bookID); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	outDir := homeDir.PageImagesDir(bookID)

	// Extract images from all PDFs
	pageCount := 0
	for i, pdfPath := range sortedPaths {
		log.Debug("extracting PDF", "file", filepath.Base(pdfPath), "part", i+1, "of", len(sortedPaths))
		count, err := extractImages(pdfPath, outDir, pageCount)
		if err != nil {
			os.RemoveAll(outDir)
			return nil, fmt.Errorf("failed to extract images from %s: %w", pdfPath, err)
		}
		log.Debug("extracted pages", "count", count, "total", pageCount+count)
		pageCount += count
	}

	if pageCount == 0 {
		os.RemoveAll(outDir)
		return nil, fmt.Errorf("no images extracted from PDFs")
	}

	log.Debug("creating book record", "title", title, "pages", pageCount)

	book := &store.Book{
		ID:          bookID,
		Title:       title,
		GradeLevel:  req.GradeLevel,
		IsActive:    true,
		IndexStatus: store.BookNotIndexed,
		CreatedAt:   time.Now().UTC(),
	}
	if req.Subject != "" {
		subject := req.Subject
		book.Subject = &subject
	}
	if err := st.CreateBook(ctx, book); err != nil {
		os.RemoveAll(outDir)
		return nil, fmt.Errorf("failed to create book record: %w", err)
	}

	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		page := &store.Page{
			ID:         uuid.New().String(),
			BookID:     bookID,
			PageNumber: pageNum,
			ImageURL:   "file://" + homeDir.PageImagePath(bookID, pageNum),
			PageType:   store.PageTypeUnknown,
		}
		if err := st.CreatePage(ctx, page); err != nil {
			return nil, fmt.Errorf("failed to create page %d record: %w", pageNum, err)
		}
	}

	log.Info("ingest complete", "book_id", bookID, "pages", pageCount)

	return &Result{
		BookID:    bookID,
		Title:     title,
		PageCount: pageCount,
	}, nil
}

// extractImages renders all pages from a PDF to the output directory using pdftoppm.
// Returns the number of pages extracted.
// pageOffset is the offset for page numbering (for multi-part PDFs).
func extractImages(pdfPath, outDir string, pageOffset int) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}

	maxWorkers := runtime.NumCPU()

	type result struct {
		pageNum int
		err     error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, maxWorkers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(pageInPDF int) {
			defer func() { <-sem }() // release

			outputPageNum := pageOffset + pageInPDF
			err := renderPage(pdfPath, outDir, pageInPDF, outputPageNum)
			results <- result{pageNum: pageInPDF, err: err}
		}(page)
	}

	successCount := 0
	for i := 0; i < pageCount; i++ {
		r := <-results
		if r.err != nil {
			return 0, fmt.Errorf("failed to render page %d: %w", r.pageNum, r.err)
		}
		successCount++
	}

	return successCount, nil
}

// renderPage renders a single page from a PDF using pdftoppm (poppler-utils).
func renderPage(pdfPath, outDir string, pageInPDF, outputPageNum int) error {
	tmpDir, err := os.MkdirTemp("", "satchel-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -png PNG output, -f/-l page bounds, -r 300 DPI, -singlefile no suffix
	pageStr := strconv.Itoa(pageInPDF)
	cmd := exec.Command("pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", "300",
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	if _, err := os.Stat(srcPath); err != nil {
		return fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read rendered image: %w", err)
	}

	dstPath := filepath.Join(outDir, fmt.Sprintf("page_%04d.png", outputPageNum))
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write page image: %w", err)
	}

	return nil
}

// sortPDFsByNumber sorts PDF paths by their numeric suffix.
// e.g., ["book-2.pdf", "book-1.pdf", "book-10.pdf"] -> ["book-1.pdf", "book-2.pdf", "book-10.pdf"]
func sortPDFsByNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	re := regexp.MustCompile(`-(\d+)\.pdf$`)

	sort.Slice(sorted, func(i, j int) bool {
		mi := re.FindStringSubmatch(sorted[i])
		mj := re.FindStringSubmatch(sorted[j])

		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			return ni < nj
		}

		// Files without numbers come first
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}

		return sorted[i] < sorted[j]
	})

	return sorted
}

// deriveTitle extracts a title from a PDF filename.
// e.g., "grade5-science-1.pdf" -> "grade5-science"
func deriveTitle(pdfPath string) string {
	base := filepath.Base(pdfPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	re := regexp.MustCompile(`-\d+$`)
	name = re.ReplaceAllString(name, "")

	return name
}
