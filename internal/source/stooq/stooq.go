package stooq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"idxdata/internal/httpx"
	"idxdata/internal/source"
)

// Config controls the Stooq CSV adapter.
type Config struct {
	Name    string
	BaseURL string // default https://stooq.com
}

// Adapter downloads daily history from stooq.com. Stooq lists Indonesian
// stocks under the .ID suffix, so BBCA.JK is requested as bbca.id; the
// payload keeps the caller's ticker.
type Adapter struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Stooq"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://stooq.com"
	}
	return &Adapter{cfg: cfg, client: hc}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// Symbol translates an exchange-suffixed ticker into Stooq's naming.
func Symbol(ticker string) string {
	base := ticker
	if i := strings.IndexByte(ticker, '.'); i > 0 {
		base = ticker[:i]
	}
	return strings.ToLower(base) + ".id"
}

func (a *Adapter) Fetch(ctx context.Context, ticker string, from, to time.Time) (*source.RawPayload, error) {
	q := url.Values{}
	q.Set("s", Symbol(ticker))
	q.Set("d1", from.Format("20060102"))
	q.Set("d2", to.Format("20060102"))
	q.Set("i", "d")
	u := fmt.Sprintf("%s/q/d/l/?%s", a.cfg.BaseURL, q.Encode())

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

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, source.Errf(source.KindRateLimited, a.cfg.Name, "HTTP 429")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, source.Errf(source.KindUnavailable, a.cfg.Name, "HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, source.Wrap(source.KindUnavailable, a.cfg.Name, err)
	}
	trimmed := bytes.TrimSpace(body)
	// Stooq answers unknown symbols and daily-limit hits with a short plain
	// text body instead of an error status.
	switch {
	case len(trimmed) == 0, bytes.HasPrefix(trimmed, []byte("No data")):
		return nil, source.Errf(source.KindNoData, a.cfg.Name, "no data for %s", Symbol(ticker))
	case bytes.HasPrefix(trimmed, []byte("Exceeded")):
		return nil, source.Errf(source.KindRateLimited, a.cfg.Name, "daily download limit exceeded")
	case !bytes.Contains(trimmed, []byte("\n")):
		return nil, source.Errf(source.KindNoData, a.cfg.Name, "header-only response for %s", Symbol(ticker))
	}
	return &source.RawPayload{SourceID: a.cfg.Name, Dialect: source.DialectStooq, Ticker: ticker, Data: body}, nil
}
