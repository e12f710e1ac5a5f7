// Package browser drives a headless browser to download history CSVs for
// tickers that every API refuses to serve. The browser is an exclusive,
// stateful external resource: exactly one download runs at a time across
// all tickers, and the process is torn down on every exit path including
// cancellation.
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"idxdata/internal/source"
)

// Config controls the browser adapter. Command is a user-supplied wrapper
// (typically a script around headless Chromium) that receives the history
// URL as its last argument and writes the downloaded CSV to stdout.
type Config struct {
	Name    string
	Command string
	Args    []string
	BaseURL string        // history page base, default finance.yahoo.com
	Timeout time.Duration // per-download budget, default 2m
}

type Adapter struct {
	cfg Config

	// session guards the single browser session.
	session sync.Mutex
}

func New(cfg Config) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Browser"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finance.yahoo.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context, ticker string, from, to time.Time) (*source.RawPayload, error) {
	if a.cfg.Command == "" {
		return nil, source.Errf(source.KindUnavailable, a.cfg.Name, "browser command not configured")
	}

	// The session is exclusive; callers queue here rather than spawning a
	// second browser.
	a.session.Lock()
	defer a.session.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, source.Wrap(source.KindTimeout, a.cfg.Name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	pageURL := fmt.Sprintf("%s/quote/%s/history", a.cfg.BaseURL, ticker)
	args := append(append([]string{}, a.cfg.Args...), pageURL)
	cmd := exec.CommandContext(ctx, a.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, source.Errf(source.KindTimeout, a.cfg.Name, "browser download timed out for %s", ticker)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, source.Wrap(source.KindTimeout, a.cfg.Name, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, source.Errf(source.KindUnavailable, a.cfg.Name, "browser command failed: %s", msg)
	}
	if len(bytes.TrimSpace(out)) == 0 || !bytes.Contains(out, []byte("\n")) {
		return nil, source.Errf(source.KindNoData, a.cfg.Name, "browser produced no rows for %s", ticker)
	}
	return &source.RawPayload{SourceID: a.cfg.Name, Dialect: source.DialectYahoo, Ticker: ticker, Data: out}, nil
}
