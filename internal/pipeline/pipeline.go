// Package pipeline drives the per-ticker fallback chain: an ordered list of
// rate-limited adapters is tried until one yields usable data or the list
// is exhausted, then the normalized series is certified by the quality
// gates. Distinct tickers run on a bounded worker pool; within one ticker
// the chain is strictly sequential.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"idxdata/internal/bar"
	"idxdata/internal/normalize"
	"idxdata/internal/quality"
	"idxdata/internal/source"
)

// State is a ticker's terminal acquisition state.
type State string

const (
	StatePending   State = "PENDING"
	StateSuccess   State = "SUCCESS"
	StateExhausted State = "EXHAUSTED"
)

// Attempt records one adapter try, success or not. The list is append-only
// within a run and feeds the audit trail in the summary.
type Attempt struct {
	Ticker  string `json:"ticker"`
	Adapter string `json:"adapter"`
	Outcome string `json:"outcome"`
	Records int    `json:"records"`
	Err     string `json:"error,omitempty"`
}

// TickerResult is everything the run produced for one ticker.
type TickerResult struct {
	Ticker   string          `json:"ticker"`
	State    State           `json:"state"`
	Adapter  string          `json:"adapter,omitempty"`
	Records  int             `json:"records"`
	From     string          `json:"from,omitempty"`
	To       string          `json:"to,omitempty"`
	Dropped  int             `json:"dropped_rows"`
	Attempts []Attempt       `json:"attempts"`
	Series   *bar.Series     `json:"-"`
	Report   *quality.Report `json:"quality,omitempty"`
}

// Summary is the run-level report: ticker-keyed, order-independent.
type Summary struct {
	RunID        string          `json:"run_id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Tickers      []*TickerResult `json:"tickers"`
	Exhausted    []string        `json:"exhausted"`
	SuccessRatio float64         `json:"success_ratio"`
}

// Options configure an Orchestrator.
type Options struct {
	Workers    int
	Thresholds quality.Thresholds
	Logger     *slog.Logger
	Now        func() time.Time
}

type Orchestrator struct {
	adapters   []source.Adapter
	workers    int
	thresholds quality.Thresholds
	log        *slog.Logger
	now        func() time.Time
}

// New builds an orchestrator over adapters in priority order. The slice is
// the fallback chain; earlier entries are tried first.
func New(adapters []source.Adapter, opts Options) *Orchestrator {
	o := &Orchestrator{
		adapters:   adapters,
		workers:    opts.Workers,
		thresholds: opts.Thresholds,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if o.workers <= 0 {
		o.workers = 4
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Run processes all tickers and returns the summary. Ticker-level
// exhaustion is not an error; only context cancellation aborts the run.
func (o *Orchestrator) Run(ctx context.Context, tickers []string, from, to time.Time) (*Summary, error) {
	started := o.now()
	results := make([]*TickerResult, 0, len(tickers))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, t := range tickers {
		g.Go(func() error {
			res, err := o.runTicker(ctx, t, from, to)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Ticker < results[j].Ticker })
	sum := &Summary{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		FinishedAt: o.now(),
		Tickers:    results,
		Exhausted:  []string{},
	}
	succeeded := 0
	for _, r := range results {
		if r.State == StateSuccess {
			succeeded++
		} else {
			sum.Exhausted = append(sum.Exhausted, r.Ticker)
		}
	}
	if len(results) > 0 {
		sum.SuccessRatio = float64(succeeded) / float64(len(results))
	}
	o.log.Info("run finished",
		"run_id", sum.RunID,
		"tickers", len(results),
		"succeeded", succeeded,
		"exhausted", len(sum.Exhausted))
	return sum, err
}

// runTicker walks the fallback chain for one ticker. Adapters are tried
// strictly in configured order, never concurrently for the same ticker,
// and the first adapter returning at least one parseable record wins.
func (o *Orchestrator) runTicker(ctx context.Context, ticker string, from, to time.Time) (*TickerResult, error) {
	res := &TickerResult{Ticker: ticker, State: StatePending, Attempts: []Attempt{}}

	for _, a := range o.adapters {
		if err := ctx.Err(); err != nil {
			res.State = StateExhausted
			return res, err
		}

		payload, err := a.Fetch(ctx, ticker, from, to)
		if err != nil {
			kind := source.KindOf(err)
			res.Attempts = append(res.Attempts, Attempt{
				Ticker: ticker, Adapter: a.Name(), Outcome: kind.String(), Err: err.Error(),
			})
			o.log.Warn("fetch failed",
				"ticker", ticker, "adapter", a.Name(), "outcome", kind.String(), "error", err)
			if ctx.Err() != nil {
				res.State = StateExhausted
				return res, ctx.Err()
			}
			continue
		}

		norm, err := normalize.Normalize(payload, normalize.Options{Ticker: ticker})
		if err != nil {
			res.Attempts = append(res.Attempts, Attempt{
				Ticker: ticker, Adapter: a.Name(), Outcome: source.KindParseError.String(), Err: err.Error(),
			})
			o.log.Warn("normalize failed", "ticker", ticker, "adapter", a.Name(), "error", err)
			continue
		}
		if norm.Series.Len() == 0 {
			res.Attempts = append(res.Attempts, Attempt{
				Ticker: ticker, Adapter: a.Name(), Outcome: source.KindNoData.String(),
				Err: "no parseable records",
			})
			o.log.Warn("no parseable records",
				"ticker", ticker, "adapter", a.Name(), "dropped", norm.Dropped)
			continue
		}

		res.Attempts = append(res.Attempts, Attempt{
			Ticker: ticker, Adapter: a.Name(), Outcome: "success", Records: norm.Series.Len(),
		})
		res.State = StateSuccess
		res.Adapter = a.Name()
		res.Records = norm.Series.Len()
		res.Dropped = norm.Dropped
		res.Series = &norm.Series
		first, last := norm.Series.DateRange()
		res.From = first.Format("2006-01-02")
		res.To = last.Format("2006-01-02")
		res.Report = quality.Check(res.Series, o.thresholds, o.now())

		o.log.Info("ticker acquired",
			"ticker", ticker,
			"adapter", a.Name(),
			"dialect", string(norm.Dialect),
			"records", res.Records,
			"dropped", res.Dropped,
			"quality", res.Report.OverallStatus)
		return res, nil
	}

	res.State = StateExhausted
	o.log.Warn("all adapters exhausted", "ticker", ticker, "attempts", len(res.Attempts))
	return res, nil
}
