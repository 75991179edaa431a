// Package vision provides the client for the external vision-capable
// inference service. The service accepts an image reference plus a
// natural-language instruction and returns free-form text expected to
// contain a JSON object.
package vision

import (
	"context"
	"errors"
	"fmt"
)

// ErrRateLimited signals an upstream HTTP 429. The client never retries;
// callers own the back-off policy.
var ErrRateLimited = errors.New("vision service rate limited")

// ErrQuotaExhausted signals an upstream HTTP 402 (credits exhausted).
var ErrQuotaExhausted = errors.New("vision service quota exhausted")

// UpstreamError is any other non-2xx response from the inference service.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("vision service error (status %d): %s", e.StatusCode, e.Body)
}

// Client is the vision inference interface consumed by the page classifier
// and the indexing orchestrator.
type Client interface {
	// Analyze sends one image plus an instruction and returns the raw
	// model output. Safe for concurrent use.
	Analyze(ctx context.Context, req *Request) (*Result, error)

	// Name returns the client identifier (e.g., "gateway").
	Name() string
}

// Request is a single vision analysis request.
type Request struct {
	// System is the system instruction framing the task.
	System string

	// Prompt is the user instruction accompanying the image.
	Prompt string

	// ImageURL is the image reference (https or data URL).
	ImageURL string

	// MaxTokens bounds the completion length (0 = provider default).
	MaxTokens int
}

// Result is the raw response from a vision call.
type Result struct {
	// Content is the model's text output, expected (but not guaranteed)
	// to contain a JSON object.
	Content string

	// ModelUsed is the model that served the request.
	ModelUsed string

	// Token counts, when the provider reports usage.
	PromptTokens     int
	CompletionTokens int
}
