package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"satchel/internal/store"
	"satchel/internal/vision"
)

const systemPrompt = `You are an expert educational content analyzer. Focus ONLY on identifying topics, lessons, and chapters from textbook pages. Do NOT extract full text. Always respond with valid JSON only, no markdown.`

const userPrompt = `Analyze this textbook/book page. Extract ONLY:
1. Topic/Lesson name visible
2. Chapter or Section title if visible
3. Key concepts and keywords (5-10 terms)
4. A brief 1-sentence summary

Return ONLY valid JSON in this exact format:
{
  "topics": ["Topic 1"],
  "chapter_title": "Chapter title or null",
  "keywords": ["keyword1"],
  "summary": "Brief summary"
}`

const metadataSchemaSrc = `{
  "type": "object",
  "properties": {
    "topics": {"type": "array", "items": {"type": "string"}},
    "chapter_title": {"type": ["string", "null"]},
    "keywords": {"type": "array", "items": {"type": "string"}},
    "summary": {"type": "string"}
  }
}`

var metadataSchema = mustCompileSchema(metadataSchemaSrc)

// degradedSummary marks entries whose vision response could not be parsed.
// Such entries are still completed: a permanently malformed response must
// not be retried forever.
const degradedSummary = "Unable to parse page content"

// maxCompletionTokens bounds the metadata-only extraction call.
const maxCompletionTokens = 1500

// run executes one indexing run. Strictly sequential over pages: the
// cooldown-on-429 strategy assumes a single in-flight vision call.
func (o *Orchestrator) run(ctx context.Context, bookID string, pages []*store.Page, force bool) {
	log := o.logger.With("book_id", bookID)

	var successCount, errorCount, attempted int

	for _, page := range pages {
		if ctx.Err() != nil {
			log.Warn("indexing run cancelled", "page", page.PageNumber)
			break
		}

		// Idempotent re-entrancy: completed entries cost nothing on a
		// resumed or repeated run.
		if !force {
			entry, err := o.store.GetEntry(ctx, bookID, page.ID)
			if err == nil && entry.IndexStatus == store.EntryCompleted {
				log.Debug("page already indexed, skipping", "page", page.PageNumber)
				successCount++
				continue
			}
		}

		attempted++
		if err := o.processPage(ctx, log, bookID, page); err != nil {
			errorCount++
			// One page's failure never aborts the run; rate-limit
			// errors earn a cooldown before the next page.
			if errors.Is(err, vision.ErrRateLimited) || errors.Is(err, vision.ErrQuotaExhausted) {
				log.Warn("rate limited, cooling down",
					"page", page.PageNumber, "cooldown", o.cfg.RateLimitCooldown)
				sleep(ctx, o.cfg.RateLimitCooldown)
			} else {
				log.Error("page indexing failed", "page", page.PageNumber, "error", err)
			}
			continue
		}

		successCount++
		sleep(ctx, o.cfg.InterCallDelay)
	}

	// The book-level status is an optimistic aggregate: only a run where
	// every attempted page failed counts as a book-level error. Page-level
	// statuses remain the source of truth for what needs repair.
	finalStatus := store.BookIndexed
	if attempted > 0 && errorCount == attempted {
		finalStatus = store.BookIndexError
	}
	if err := o.store.SetBookIndexStatus(ctx, bookID, finalStatus); err != nil {
		log.Error("failed to set final book status", "error", err)
	}

	log.Info("indexing run complete",
		"status", finalStatus, "success", successCount, "errors", errorCount,
		"skipped", len(pages)-attempted)
}

// processPage indexes a single page: placeholder upsert, vision call, final
// upsert. The placeholder makes a crash mid-run visible as partial state.
func (o *Orchestrator) processPage(ctx context.Context, log *slog.Logger, bookID string, page *store.Page) error {
	err := o.store.UpsertEntryStatus(ctx, bookID, page.ID, page.PageNumber, store.EntryProcessing)
	if err != nil {
		return fmt.Errorf("failed to write processing placeholder: %w", err)
	}

	// Thumbnails are preferred: smaller payloads keep token cost and
	// latency bounded per page.
	imageURL := page.ImageURL
	if page.ThumbnailURL != nil && *page.ThumbnailURL != "" {
		imageURL = *page.ThumbnailURL
	}

	res, err := o.vision.Analyze(ctx, &vision.Request{
		System:    systemPrompt,
		Prompt:    userPrompt,
		ImageURL:  imageURL,
		MaxTokens: maxCompletionTokens,
	})
	if err != nil {
		if upErr := o.store.UpsertEntryStatus(ctx, bookID, page.ID, page.PageNumber, store.EntryError); upErr != nil {
			log.Error("failed to record page error", "page", page.PageNumber, "error", upErr)
		}
		return err
	}

	meta := parseMetadata(log, res.Content)
	now := time.Now().UTC()
	entry := &store.IndexEntry{
		BookID:       bookID,
		PageID:       page.ID,
		PageNumber:   page.PageNumber,
		Topics:       meta.Topics,
		Keywords:     meta.Keywords,
		ChapterTitle: meta.ChapterTitle,
		Summary:      meta.Summary,
		IndexStatus:  store.EntryCompleted,
		IndexedAt:    &now,
	}
	if err := o.store.UpsertEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to write index entry: %w", err)
	}

	log.Debug("page indexed", "page", page.PageNumber)
	return nil
}

// pageMetadata is the wire format the fixed extraction instruction asks for.
type pageMetadata struct {
	Topics       []string `json:"topics"`
	ChapterTitle *string  `json:"chapter_title"`
	Keywords     []string `json:"keywords"`
	Summary      string   `json:"summary"`
}

// parseMetadata extracts page metadata from model output. Parse or
// validation failures yield a degraded-but-valid result; they are never
// propagated.
func parseMetadata(log *slog.Logger, content string) *pageMetadata {
	degraded := &pageMetadata{
		Topics:   []string{},
		Keywords: []string{},
		Summary:  degradedSummary,
	}

	raw, err := vision.ExtractJSON(content)
	if err != nil {
		log.Warn("failed to parse extraction response", "error", err)
		return degraded
	}
	if err := vision.ValidateJSON(metadataSchema, raw); err != nil {
		log.Warn("extraction response failed validation", "error", err)
		return degraded
	}

	var meta pageMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		log.Warn("failed to decode extraction response", "error", err)
		return degraded
	}

	if meta.Topics == nil {
		meta.Topics = []string{}
	}
	if meta.Keywords == nil {
		meta.Keywords = []string{}
	}
	return &meta
}

func mustCompileSchema(src string) *jsonschema.Schema {
	schema, err := vision.CompileSchema(src)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded schema: %v", err))
	}
	return schema
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
