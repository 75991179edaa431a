package vision

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket keyed to a steady requests-per-second rate.
// It keeps a single client under the inference service's limit; the 429
// cooldown behavior on top of it belongs to the callers.
type RateLimiter struct {
	mu sync.Mutex

	rps        float64
	burst      float64
	tokens     float64
	lastUpdate time.Time

	totalConsumed int64
	last429Time   time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second.
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		rps = 1.0
	}
	burst := rps
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:        rps,
		burst:      burst,
		tokens:     burst,
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		needed := 1.0 - r.tokens
		waitTime := time.Duration(needed / r.rps * float64(time.Second))
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// Record429 notes an upstream rate-limit response and drains the bucket so
// the next call waits a full refill interval.
func (r *RateLimiter) Record429() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last429Time = time.Now()
	r.tokens = 0
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.rps
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
}
