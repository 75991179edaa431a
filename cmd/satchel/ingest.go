package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"satchel/internal/home"
	"satchel/internal/ingest"
	"satchel/internal/store"
)

var (
	ingestTitle      string
	ingestGradeLevel string
	ingestSubject    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf> [pdf...]",
	Short: "Ingest scanned book PDFs into the library",
	Long: `Ingest renders each PDF page to a PNG under the home directory and
creates the book and page records the indexing pipeline operates on.

Multi-part scans are ordered by numeric filename suffix
(book-1.pdf, book-2.pdf, ...).

Examples:
  satchel ingest scans/grade5-science.pdf --grade-level "Grade 5" --subject Science
  satchel ingest scans/atlas-1.pdf scans/atlas-2.pdf --title "World Atlas"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		st, err := store.Open(ctx, h.DatabasePath(), logger)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := ingest.Ingest(ctx, st, h, ingest.Request{
			PDFPaths:   args,
			Title:      ingestTitle,
			GradeLevel: ingestGradeLevel,
			Subject:    ingestSubject,
			Logger:     logger,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %q: %d pages (book %s)\n", result.Title, result.PageCount, result.BookID)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "book title (default: derived from filename)")
	ingestCmd.Flags().StringVar(&ingestGradeLevel, "grade-level", "", "grade level, e.g. \"Grade 5\"")
	ingestCmd.Flags().StringVar(&ingestSubject, "subject", "", "subject, e.g. Science")

	rootCmd.AddCommand(ingestCmd)
}
