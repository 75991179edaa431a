// Package classifier implements page classification: given one scanned page
// image, it asks the vision service to transcribe any printed page number
// and to classify the page as numbered, cover, blank, or unknown. Results
// are cached permanently per page; classification is attempted at most once.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"satchel/internal/store"
	"satchel/internal/vision"
)

const systemPrompt = `You are a page number detection assistant. Analyze book page images to detect the printed page number.

Your task:
1. Look for printed page numbers (usually at corners, header, or footer of the page)
2. Identify if this is a cover page (front cover, back cover, title page)
3. Identify if this is a blank page
4. For numbered pages, extract the exact page number shown

Respond with a JSON object only, no markdown:
{
  "detectedPageNumber": "1" or null if not found,
  "pageType": "numbered" | "cover" | "blank" | "unknown",
  "confidence": 0.0 to 1.0
}`

const userPrompt = `Analyze this book page image and detect the page number if present. Return the result as JSON.`

// resultSchema gates what the model is allowed to return. Anything that
// fails validation is treated as a parse failure and degraded.
const resultSchema = `{
  "type": "object",
  "properties": {
    "detectedPageNumber": {"type": ["string", "null"]},
    "pageType": {"type": "string"},
    "confidence": {"type": "number"}
  }
}`

// Request identifies one page image to classify. PageID is optional: when
// set, the stored record serves as a permanent cache and the result is
// persisted.
type Request struct {
	ImageURL  string
	PageIndex int
	PageID    string
}

// Result is a page classification.
type Result struct {
	PageIndex          int            `json:"page_index"`
	DetectedPageNumber *string        `json:"detected_page_number"`
	PageType           store.PageType `json:"page_type"`
	Confidence         float64        `json:"confidence"`
}

// Classifier classifies pages via the vision service with a write-once
// per-page cache. Safe for concurrent use across distinct pages.
type Classifier struct {
	store  *store.Store
	vision vision.Client
	logger *slog.Logger
}

// New creates a Classifier.
func New(st *store.Store, client vision.Client, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		store:  st,
		vision: client,
		logger: logger.With("component", "classifier"),
	}
}

// Classify returns the classification for one page image.
//
// Cache-first: when req.PageID is set and detection has already completed,
// the stored fields are returned without any vision call. Otherwise one
// vision call is made and, when req.PageID is set, the result (confident
// or degraded) is persisted with detection_completed before returning.
//
// Vision failures (ErrRateLimited, ErrQuotaExhausted, UpstreamError) are
// returned as-is; this component has no retry policy of its own.
func (c *Classifier) Classify(ctx context.Context, req *Request) (*Result, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("image URL is required")
	}

	if req.PageID != "" {
		page, err := c.store.GetPage(ctx, req.PageID)
		if err != nil {
			return nil, fmt.Errorf("failed to load page: %w", err)
		}
		if page.DetectionCompleted {
			c.logger.Debug("returning cached classification", "page_id", req.PageID)
			return &Result{
				PageIndex:          req.PageIndex,
				DetectedPageNumber: page.DetectedPageNumber,
				PageType:           page.PageType,
				Confidence:         page.DetectionConfidence,
			}, nil
		}
	}

	res, err := c.vision.Analyze(ctx, &vision.Request{
		System:   systemPrompt,
		Prompt:   userPrompt,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return nil, err
	}

	result := c.parse(res.Content, req.PageIndex)

	if req.PageID != "" {
		// An unpersisted result would spend another vision call on the
		// next request for this page, so a failed write fails the call.
		err := c.store.SavePageDetection(ctx, req.PageID,
			result.DetectedPageNumber, result.PageType, result.Confidence)
		if err != nil {
			return nil, fmt.Errorf("failed to persist classification: %w", err)
		}
	}

	return result, nil
}

// detectionPayload is the wire format the fixed instruction asks for.
type detectionPayload struct {
	DetectedPageNumber *string `json:"detectedPageNumber"`
	PageType           string  `json:"pageType"`
	Confidence         float64 `json:"confidence"`
}

// parse extracts the classification from model output. Parse or validation
// failures degrade to {nil, unknown, 0} rather than failing the caller.
func (c *Classifier) parse(content string, pageIndex int) *Result {
	degraded := &Result{PageIndex: pageIndex, PageType: store.PageTypeUnknown}

	raw, err := vision.ExtractJSON(content)
	if err != nil {
		c.logger.Warn("failed to parse classification response", "error", err)
		return degraded
	}
	if err := vision.ValidateJSON(detectionSchema, raw); err != nil {
		c.logger.Warn("classification response failed validation", "error", err)
		return degraded
	}

	var payload detectionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.logger.Warn("failed to decode classification response", "error", err)
		return degraded
	}

	return &Result{
		PageIndex:          pageIndex,
		DetectedPageNumber: payload.DetectedPageNumber,
		PageType:           normalizePageType(payload.PageType),
		Confidence:         clampConfidence(payload.Confidence),
	}
}

var detectionSchema = mustCompileSchema(resultSchema)

func mustCompileSchema(src string) *jsonschema.Schema {
	schema, err := vision.CompileSchema(src)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded schema: %v", err))
	}
	return schema
}

func normalizePageType(s string) store.PageType {
	switch store.PageType(s) {
	case store.PageTypeNumbered, store.PageTypeCover, store.PageTypeBlank:
		return store.PageType(s)
	default:
		return store.PageTypeUnknown
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
