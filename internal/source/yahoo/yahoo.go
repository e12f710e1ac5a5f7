package yahoo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"idxdata/internal/httpx"
	"idxdata/internal/source"
)

// Config controls the Yahoo Finance CSV download adapter.
type Config struct {
	Name    string
	BaseURL string            // download endpoint base, default query1.finance.yahoo.com
	Headers map[string]string // optional extra headers
}

// Adapter fetches daily history via Yahoo's CSV download endpoint. Yahoo
// serves this to browsers, so the shared client's browser-ish User-Agent
// matters more than usual here.
type Adapter struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Yahoo"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	return &Adapter{cfg: cfg, client: hc}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context, ticker string, from, to time.Time) (*source.RawPayload, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/v7/finance/download/%s?%s", a.cfg.BaseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, source.Wrap(source.KindUnavailable, a.cfg.Name, err)
	}
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, source.Wrap(kindOfNetErr(err), a.cfg.Name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, source.Errf(source.KindNotFound, a.cfg.Name, "no such symbol %s", ticker)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, source.Errf(source.KindAuthError, a.cfg.Name, "download rejected: HTTP %d", resp.StatusCode)
	case http.StatusTooManyRequests:
		return nil, source.Errf(source.KindRateLimited, a.cfg.Name, "HTTP 429")
	default:
		return nil, source.Errf(source.KindUnavailable, a.cfg.Name, "HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, source.Wrap(kindOfNetErr(err), a.cfg.Name, err)
	}
	if !bytes.Contains(body, []byte("\n")) {
		// header-only or empty download
		return nil, source.Errf(source.KindNoData, a.cfg.Name, "empty download for %s", ticker)
	}
	return &source.RawPayload{SourceID: a.cfg.Name, Dialect: source.DialectYahoo, Ticker: ticker, Data: body}, nil
}

func kindOfNetErr(err error) source.Kind {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return source.KindTimeout
	}
	return source.KindUnavailable
}
