package ratelimit

import (
	"context"
	"time"

	"idxdata/internal/source"
)

// Retry wraps an adapter with a bounded retry policy: up to MaxRetries extra
// attempts with doubling backoff, capped at MaxDelay. Only timeouts and
// transient network failures are retried; auth and not-found errors fail
// immediately. Exhausting the budget returns the last error unchanged, so
// the caller still sees the real kind.
type Retry struct {
	A          source.Adapter
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Sleep is swapped for a recorder in tests. nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (r *Retry) Name() string { return r.A.Name() }

func (r *Retry) Fetch(ctx context.Context, ticker string, from, to time.Time) (*source.RawPayload, error) {
	delay := r.BaseDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	var err error
	for attempt := 0; ; attempt++ {
		var p *source.RawPayload
		p, err = r.A.Fetch(ctx, ticker, from, to)
		if err == nil {
			return p, nil
		}
		if !source.Retryable(source.KindOf(err)) || attempt >= r.MaxRetries {
			return nil, err
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			return nil, err
		}
		delay *= 2
		if r.MaxDelay > 0 && delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}
}

func (r *Retry) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
