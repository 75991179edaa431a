package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	GatewayName         = "gateway"
	gatewayDefaultModel = "google/gemini-2.5-flash"
	gatewayDefaultURL   = "https://ai.gateway.lovable.dev/v1"
)

// GatewayConfig holds configuration for the AI gateway client.
type GatewayConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	RateLimit  float64      // requests per second (0 = no limiter)
	HTTPClient *http.Client // optional (tests)
}

// GatewayClient implements Client against an OpenAI-compatible
// chat-completions gateway with vision support. It does not retry:
// 429 and 402 are surfaced as named errors and callers own the policy.
type GatewayClient struct {
	apiKey  string
	baseURL string
	model   string
	limiter *RateLimiter
	client  *http.Client
}

// NewGatewayClient creates a new gateway client.
func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = gatewayDefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = gatewayDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	g := &GatewayClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  client,
	}
	if cfg.RateLimit > 0 {
		g.limiter = NewRateLimiter(cfg.RateLimit)
	}
	return g
}

// Name returns the client identifier.
func (g *GatewayClient) Name() string {
	return GatewayName
}

// gateway wire types (OpenAI chat-completions shape)

type gatewayRequest struct {
	Model     string           `json:"model"`
	Messages  []gatewayMessage `json:"messages"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

type gatewayMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []gatewayContentPart
}

type gatewayContentPart struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *gatewayImageURL `json:"image_url,omitempty"`
}

type gatewayImageURL struct {
	URL string `json:"url"`
}

type gatewayResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Analyze sends a single vision request.
func (g *GatewayClient) Analyze(ctx context.Context, req *Request) (*Result, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body := gatewayRequest{
		Model: g.model,
		Messages: []gatewayMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: []gatewayContentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &gatewayImageURL{URL: req.ImageURL}},
			}},
		},
		MaxTokens: req.MaxTokens,
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if g.limiter != nil {
			g.limiter.Record429()
		}
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return nil, ErrQuotaExhausted
	case resp.StatusCode != http.StatusOK:
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}

	var gr gatewayResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(gr.Choices) == 0 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: "empty choices in response"}
	}

	return &Result{
		Content:          gr.Choices[0].Message.Content,
		ModelUsed:        gr.Model,
		PromptTokens:     gr.Usage.PromptTokens,
		CompletionTokens: gr.Usage.CompletionTokens,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
