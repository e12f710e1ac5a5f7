// Package notify routes exhausted tickers to the manual-intervention path.
// A notice names the ticker and carries source-specific retrieval guidance
// so whoever picks it up knows exactly where to download the file by hand.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Notice is one manual-intervention request.
type Notice struct {
	RunID    string    `json:"run_id"`
	Ticker   string    `json:"ticker"`
	Attempts int       `json:"attempts"`
	Guidance string    `json:"guidance"`
	At       time.Time `json:"at"`
}

// Notifier delivers notices. Implementations must be safe to call from the
// end of a run regardless of how many tickers were exhausted.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
	Close() error
}

// Guidance builds the manual retrieval runbook for a ticker: the IDX
// trading-data page is the most reliable, Yahoo's history page the
// quickest, Stooq the fallback (note the .ID suffix there).
func Guidance(ticker string) string {
	code := ticker
	if i := strings.IndexByte(code, '.'); i > 0 {
		code = code[:i]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "manual download needed for %s:\n", ticker)
	fmt.Fprintf(&b, "1. IDX: https://www.idx.co.id/en/market-data/trading-data/stock/ search %s, download historical CSV\n", code)
	fmt.Fprintf(&b, "2. Yahoo: https://finance.yahoo.com/quote/%s/history set range, Download\n", ticker)
	fmt.Fprintf(&b, "3. Stooq: https://stooq.com/q/d/?s=%s.id historical data tab\n", strings.ToLower(code))
	fmt.Fprintf(&b, "save the file as %s.csv in the manual drop directory and re-run", code)
	return b.String()
}

// LogNotifier writes notices to the structured log. Always available; the
// default when no broker is configured.
type LogNotifier struct {
	L *slog.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, notice Notice) error {
	l := n.L
	if l == nil {
		l = slog.Default()
	}
	l.Warn("manual intervention required",
		"run_id", notice.RunID,
		"ticker", notice.Ticker,
		"attempts", notice.Attempts,
		"guidance", notice.Guidance)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
