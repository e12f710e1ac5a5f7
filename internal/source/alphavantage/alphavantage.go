package alphavantage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"idxdata/internal/httpx"
	"idxdata/internal/source"
)

// Config controls the Alpha Vantage adapter. The free tier allows 5
// requests per minute and 500 per day; the matching token bucket lives in
// the orchestrator wiring, not here.
type Config struct {
	Name    string
	APIKey  string
	BaseURL string // default https://www.alphavantage.co
}

type Adapter struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "AlphaVantage"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co"
	}
	return &Adapter{cfg: cfg, client: hc}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context, ticker string, from, to time.Time) (*source.RawPayload, error) {
	if a.cfg.APIKey == "" {
		return nil, source.Errf(source.KindAuthError, a.cfg.Name, "API key not configured")
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", ticker)
	q.Set("apikey", a.cfg.APIKey)
	q.Set("outputsize", "full")
	q.Set("datatype", "csv")
	u := fmt.Sprintf("%s/query?%s", a.cfg.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, source.Wrap(source.KindUnavailable, a.cfg.Name, err)
	}
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, source.Wrap(source.KindTimeout, a.cfg.Name, err)
		}
		return nil, source.Wrap(source.KindUnavailable, a.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, source.Errf(source.KindUnavailable, a.cfg.Name, "HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, source.Wrap(source.KindUnavailable, a.cfg.Name, err)
	}

	// Alpha Vantage reports quota and key problems as a JSON body with
	// HTTP 200; a real CSV answer starts with the timestamp header.
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		switch {
		case bytes.Contains(trimmed, []byte("Note")) || bytes.Contains(trimmed, []byte("Thank you for using")):
			return nil, source.Errf(source.KindRateLimited, a.cfg.Name, "free-tier quota hit")
		case bytes.Contains(trimmed, []byte("apikey")) || bytes.Contains(trimmed, []byte("Invalid API call")):
			return nil, source.Errf(source.KindAuthError, a.cfg.Name, "rejected API call")
		default:
			return nil, source.Errf(source.KindParseError, a.cfg.Name, "unexpected JSON answer: %.80s", trimmed)
		}
	}
	if !bytes.HasPrefix(trimmed, []byte("timestamp")) {
		return nil, source.Errf(source.KindParseError, a.cfg.Name, "response is not TIME_SERIES_DAILY csv")
	}
	if !bytes.Contains(trimmed, []byte("\n")) {
		return nil, source.Errf(source.KindNoData, a.cfg.Name, "no rows for %s", ticker)
	}
	return &source.RawPayload{SourceID: a.cfg.Name, Dialect: source.DialectAlphaVantage, Ticker: ticker, Data: body}, nil
}
