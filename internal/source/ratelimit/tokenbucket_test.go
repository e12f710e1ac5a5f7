package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketAllowsBurstThenBlocks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tb := PerWindow(60, time.Minute, 2) // 1/s, burst 2
	start := time.Now()

	for i := 0; i < 3; i++ {
		if err := tb.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)
	// two tokens are free, the third waits roughly one refill interval
	if elapsed < 500*time.Millisecond {
		t.Fatalf("third acquire returned after %v, expected a wait near 1s", elapsed)
	}
}

// 2N acquisitions through an N-per-window bucket cannot finish inside one
// window, measured on an injected clock by summing the computed waits.
func TestTokenBucketTwoWindowsForDoubleQuota(t *testing.T) {
	const n = 5
	window := time.Second
	tb := PerWindow(n, window, n)

	clock := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	start := clock
	tb.now = func() time.Time { return clock }
	tb.last = clock
	tb.sleep = func(ctx context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return nil
	}

	ctx := context.Background()
	for i := 0; i < 2*n; i++ {
		if err := tb.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := clock.Sub(start); elapsed < window {
		t.Fatalf("2N acquisitions took %v, want at least one %v window", elapsed, window)
	}
}

func TestTokenBucketRefill(t *testing.T) {
	clock := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	tb := NewTokenBucket(1, 1)
	tb.now = func() time.Time { return clock }
	tb.last = clock

	ctx := context.Background()
	if err := tb.Acquire(ctx); err != nil {
		t.Fatalf("initial acquire: %v", err)
	}

	// a full second later the bucket holds one token again
	clock = clock.Add(time.Second)
	done := make(chan error, 1)
	go func() { done <- tb.Acquire(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("acquire after refill: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not complete after refill")
	}
}

func TestTokenBucketCanceled(t *testing.T) {
	tb := PerWindow(1, time.Hour, 1)
	if err := tb.Acquire(context.Background()); err != nil {
		t.Fatalf("burst acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tb.Acquire(ctx); err == nil {
		t.Fatal("acquire on canceled context must fail")
	}
}
