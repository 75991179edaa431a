// Package indexer implements the book indexing orchestrator: a background
// run per book that walks pages in order, extracts searchable metadata per
// page via the vision service, and writes the page index. The index table
// itself is the durable job ledger - completed entries are skipped on
// re-entry, so a crashed run is resumed by starting it again.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"satchel/internal/store"
	"satchel/internal/vision"
)

// ErrNoPages is returned when the requested page range contains no pages.
var ErrNoPages = errors.New("no pages in requested range")

// Config tunes the orchestrator's pacing against the vision service.
type Config struct {
	// InterCallDelay is slept after every successful vision call to stay
	// under steady-state rate limits.
	InterCallDelay time.Duration

	// RateLimitCooldown is slept after a 429/402 before moving to the
	// next page.
	RateLimitCooldown time.Duration
}

// DefaultConfig returns the production pacing values.
func DefaultConfig() Config {
	return Config{
		InterCallDelay:    800 * time.Millisecond,
		RateLimitCooldown: 5 * time.Second,
	}
}

// StartRequest asks for an indexing run over a book, optionally scoped to a
// 1-based page range. Force reprocesses completed entries and overrides a
// stale indexing claim.
type StartRequest struct {
	BookID    string
	StartPage int
	EndPage   int
	Force     bool
}

// StartResult is returned synchronously; the run itself proceeds in the
// background.
type StartResult struct {
	PagesToProcess int
}

// Orchestrator runs indexing jobs. One run per book at a time, enforced by
// the store's conditional indexing claim.
type Orchestrator struct {
	store  *store.Store
	vision vision.Client
	cfg    Config
	logger *slog.Logger

	wg sync.WaitGroup
}

// New creates an Orchestrator.
func New(st *store.Store, client vision.Client, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.InterCallDelay == 0 {
		cfg.InterCallDelay = DefaultConfig().InterCallDelay
	}
	if cfg.RateLimitCooldown == 0 {
		cfg.RateLimitCooldown = DefaultConfig().RateLimitCooldown
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:  st,
		vision: client,
		cfg:    cfg,
		logger: logger.With("component", "indexer"),
	}
}

// Start validates the request, claims the book, and launches the run in the
// background. It returns as soon as the target page set is known; the caller
// polls book and entry statuses for progress.
//
// Errors: store.ErrNotFound for an unknown book, ErrNoPages for an empty
// range, store.ErrAlreadyIndexing when another run holds the claim.
func (o *Orchestrator) Start(ctx context.Context, req *StartRequest) (*StartResult, error) {
	if req.BookID == "" {
		return nil, fmt.Errorf("book ID is required")
	}

	if _, err := o.store.GetBook(ctx, req.BookID); err != nil {
		return nil, err
	}

	pages, err := o.store.ListPages(ctx, req.BookID, req.StartPage, req.EndPage)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	// Claim before spawning so a second start request observes the book
	// as in progress.
	if err := o.store.ClaimIndexing(ctx, req.BookID, req.Force); err != nil {
		return nil, err
	}

	o.logger.Info("indexing started",
		"book_id", req.BookID, "pages", len(pages), "force", req.Force)

	// The run outlives the request that triggered it.
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(runCtx, req.BookID, pages, req.Force)
	}()

	return &StartResult{PagesToProcess: len(pages)}, nil
}

// Wait blocks until all in-flight runs finish. Used on shutdown and in
// tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
