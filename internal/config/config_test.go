package config

import (
	"testing"
	"time"
)

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("SATCHEL_TEST_KEY", "secret-value")
	t.Setenv("SATCHEL_TEST_HOST", "example.com")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain value untouched", "literal-key", "literal-key"},
		{"single reference", "${SATCHEL_TEST_KEY}", "secret-value"},
		{"embedded reference", "https://${SATCHEL_TEST_HOST}/v1", "https://example.com/v1"},
		{"multiple references", "${SATCHEL_TEST_KEY}@${SATCHEL_TEST_HOST}", "secret-value@example.com"},
		{"unset variable resolves empty", "${SATCHEL_TEST_UNSET}", ""},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEnvVars(tt.input); got != tt.want {
				t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != "8080" {
		t.Errorf("server defaults = %s:%s", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Vision.Model != "google/gemini-2.5-flash" {
		t.Errorf("default model = %q", cfg.Vision.Model)
	}
	if cfg.Vision.RateLimit != 1.0 {
		t.Errorf("default rate limit = %v", cfg.Vision.RateLimit)
	}
	if cfg.Indexing.InterCallDelayMS != 800 || cfg.Indexing.RateLimitCooldownMS != 5000 {
		t.Errorf("indexing defaults = %+v", cfg.Indexing)
	}
}

func TestToGatewayConfig(t *testing.T) {
	t.Setenv("SATCHEL_TEST_API_KEY", "resolved-key")

	cfg := &Config{
		Vision: VisionConfig{
			BaseURL:        "https://gateway.example.com/v1",
			APIKey:         "${SATCHEL_TEST_API_KEY}",
			Model:          "test/model",
			RateLimit:      2.5,
			TimeoutSeconds: 30,
		},
	}

	gw := cfg.ToGatewayConfig()
	if gw.APIKey != "resolved-key" {
		t.Errorf("APIKey = %q, want env-resolved value", gw.APIKey)
	}
	if gw.BaseURL != "https://gateway.example.com/v1" || gw.Model != "test/model" {
		t.Errorf("BaseURL/Model = %q/%q", gw.BaseURL, gw.Model)
	}
	if gw.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v", gw.RateLimit)
	}
	if gw.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", gw.Timeout)
	}
}

func TestToIndexerConfig(t *testing.T) {
	cfg := &Config{
		Indexing: IndexingConfig{
			InterCallDelayMS:    250,
			RateLimitCooldownMS: 1000,
		},
	}

	ic := cfg.ToIndexerConfig()
	if ic.InterCallDelay != 250*time.Millisecond {
		t.Errorf("InterCallDelay = %v, want 250ms", ic.InterCallDelay)
	}
	if ic.RateLimitCooldown != time.Second {
		t.Errorf("RateLimitCooldown = %v, want 1s", ic.RateLimitCooldown)
	}
}
