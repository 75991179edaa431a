package vision

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterImmediateWhenTokensAvailable(t *testing.T) {
	rl := NewRateLimiter(1.0)

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait() took %v, want immediate", elapsed)
	}
}

func TestRateLimiterPacesCalls(t *testing.T) {
	// 100 rps keeps the test fast while still forcing a measurable wait
	// once the initial burst is spent.
	rl := NewRateLimiter(100.0)
	ctx := context.Background()

	// Drain the burst.
	for i := 0; i < 100; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("Wait() after drained burst took %v, want a refill wait", elapsed)
	}
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(0.001)
	rl.Record429()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestRecord429DrainsBucket(t *testing.T) {
	rl := NewRateLimiter(100.0)
	rl.Record429()

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("Wait() after Record429 took %v, want a full refill wait", elapsed)
	}
}

func TestNewRateLimiterClampsRate(t *testing.T) {
	rl := NewRateLimiter(-5)
	if rl.rps != 1.0 {
		t.Errorf("rps = %v, want 1.0 for nonpositive input", rl.rps)
	}
	if rl.burst < 1 {
		t.Errorf("burst = %v, want at least 1", rl.burst)
	}
}
