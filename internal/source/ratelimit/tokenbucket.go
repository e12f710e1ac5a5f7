package ratelimit

import (
	"context"
	"sync"
	"time"

	"idxdata/internal/source"
)

// TokenBucket is a stdlib-only token bucket limiter.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
//
// One bucket is shared by every ticker using the same adapter in a run, so
// all methods are safe for concurrent use.
type TokenBucket struct {
	rate     float64
	capacity float64

	// now and sleep are swapped for fakes in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	tb := &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		now:      time.Now,
	}
	tb.last = tb.now()
	return tb
}

// PerWindow builds a bucket for "n calls per window" quotas, the shape most
// source quotas are documented in (e.g. Alpha Vantage: 5 per minute).
func PerWindow(n int, window time.Duration, burst int) *TokenBucket {
	if window <= 0 {
		window = time.Minute
	}
	return NewTokenBucket(float64(n)/window.Seconds(), burst)
}

// Acquire blocks until one token is available or the context is canceled.
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := tb.now()
		// Refill
		elapsed := now.Sub(tb.last).Seconds()
		if elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens -= 1
			tb.mu.Unlock()
			return nil
		}
		// Need to wait for the remaining fraction
		deficit := 1 - tb.tokens
		tb.mu.Unlock()
		waitDur := time.Duration(deficit / tb.rate * 1e9)
		if waitDur <= 0 {
			waitDur = time.Millisecond
		}
		if tb.sleep != nil {
			if err := tb.sleep(ctx, waitDur); err != nil {
				return err
			}
			continue
		}
		timer := time.NewTimer(waitDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Limited wraps an adapter and gates every fetch on a token bucket.
type Limited struct {
	A  source.Adapter
	TB *TokenBucket
}

func (l *Limited) Name() string { return l.A.Name() }

func (l *Limited) Fetch(ctx context.Context, ticker string, from, to time.Time) (*source.RawPayload, error) {
	if l.TB != nil {
		if err := l.TB.Acquire(ctx); err != nil {
			return nil, source.Wrap(source.KindTimeout, l.A.Name(), err)
		}
	}
	return l.A.Fetch(ctx, ticker, from, to)
}
