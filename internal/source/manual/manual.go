// Package manual reads pre-downloaded files from a drop directory instead
// of calling the network. It is the last link of the fallback chain: when a
// human has fetched BBCA.csv by hand and dropped it in, the pipeline picks
// it up like any other payload.
package manual

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"idxdata/internal/source"
)

type Config struct {
	Name    string
	DropDir string // default data/raw/manual
}

type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Manual"
	}
	if cfg.DropDir == "" {
		cfg.DropDir = filepath.Join("data", "raw", "manual")
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// Fetch looks for csv files named after the ticker (with or without the
// exchange suffix, any _suffix) and returns the newest match. The date
// range is ignored; whatever the human downloaded is what we get, and the
// normalizer plus quality gates judge it like everything else.
func (a *Adapter) Fetch(ctx context.Context, ticker string, from, to time.Time) (*source.RawPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, source.Wrap(source.KindTimeout, a.cfg.Name, err)
	}

	entries, err := os.ReadDir(a.cfg.DropDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, source.Errf(source.KindNotFound, a.cfg.Name, "drop dir %s does not exist", a.cfg.DropDir)
		}
		return nil, source.Wrap(source.KindUnavailable, a.cfg.Name, err)
	}

	base := strings.ToUpper(ticker)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		stem := strings.ToUpper(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if stem != base && stem != strings.ToUpper(ticker) && !strings.HasPrefix(stem, base+"_") && !strings.HasPrefix(stem, strings.ToUpper(ticker)+"_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return nil, source.Errf(source.KindNotFound, a.cfg.Name, "no dropped file for %s in %s", ticker, a.cfg.DropDir)
	}

	data, err := os.ReadFile(filepath.Join(a.cfg.DropDir, newest))
	if err != nil {
		return nil, source.Wrap(source.KindUnavailable, a.cfg.Name, err)
	}
	if len(data) == 0 {
		return nil, source.Errf(source.KindNoData, a.cfg.Name, "%s is empty", newest)
	}
	// Dialect left unknown on purpose: humans drop Yahoo, Stooq and IDX
	// exports alike, and the normalizer fingerprints the header anyway.
	return &source.RawPayload{SourceID: a.cfg.Name, Dialect: source.DialectUnknown, Ticker: ticker, Data: data}, nil
}
