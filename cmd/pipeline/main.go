// Command pipeline runs the daily acquisition: for each ticker it walks the
// configured source chain, normalizes whatever comes back, scores the data
// quality and writes series plus reports under the output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"idxdata/internal/config"
	"idxdata/internal/httpx"
	"idxdata/internal/notify"
	"idxdata/internal/pipeline"
	"idxdata/internal/quality"
	"idxdata/internal/sink"
	"idxdata/internal/slogx"
	"idxdata/internal/source"
	"idxdata/internal/source/alphavantage"
	"idxdata/internal/source/browser"
	"idxdata/internal/source/manual"
	"idxdata/internal/source/ratelimit"
	"idxdata/internal/source/stooq"
	"idxdata/internal/source/yahoo"
	"idxdata/internal/store"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath = flag.String("config", "", "path to config file (json or yaml)")
		tickers = flag.String("tickers", "", "comma separated tickers, overrides config")
		days    = flag.Int("days", 0, "history range in days, overrides config")
		outDir  = flag.String("out", "", "output directory, overrides config")
		format  = flag.String("format", "", "series format: csv, json or parquet")
		workers = flag.Int("workers", 0, "concurrent tickers, overrides config")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if *tickers != "" {
		cfg.Run.Tickers = splitList(*tickers)
	}
	if *days > 0 {
		cfg.Run.RangeDays = *days
	}
	if *outDir != "" {
		cfg.Run.OutDir = *outDir
	}
	if *format != "" {
		cfg.Run.Format = *format
	}
	if *workers > 0 {
		cfg.Run.Workers = *workers
	}

	log := slogx.NewDefault(cfg.Run.LogLevel)

	saver := sink.NewSeriesSaver(cfg.Run.Format)
	if saver == nil {
		fmt.Fprintf(os.Stderr, "unsupported format %q (use: csv, json, parquet)\n", cfg.Run.Format)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hc := httpx.New(time.Duration(cfg.Run.RequestTimeoutSec) * time.Second)
	adapters := buildChain(cfg, hc)
	if len(adapters) == 0 {
		fmt.Fprintln(os.Stderr, "no sources enabled")
		os.Exit(2)
	}

	orch := pipeline.New(adapters, pipeline.Options{
		Workers: cfg.Run.Workers,
		Thresholds: quality.Thresholds{
			MinCompleteness:   cfg.Quality.MinCompleteness,
			MaxAgeDays:        cfg.Quality.MaxAgeDays,
			MaxExtremeReturns: cfg.Quality.MaxExtremeReturns,
			ExtremeReturn:     cfg.Quality.ExtremeReturn,
		},
		Logger: log,
	})

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -cfg.Run.RangeDays)
	sum, err := orch.Run(ctx, cfg.Run.Tickers, from, to)
	if err != nil {
		log.Error("run aborted", "error", err)
		os.Exit(1)
	}

	seriesDir := filepath.Join(cfg.Run.OutDir, "series")
	reportDir := filepath.Join(cfg.Run.OutDir, "reports")
	if err := os.MkdirAll(seriesDir, 0o755); err != nil {
		log.Error("create output dir", "error", err)
		os.Exit(1)
	}

	var st *store.Store
	if cfg.Database.Enabled {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			log.Error("database unavailable, file sinks only", "error", err)
		} else {
			st = store.New(pool)
			defer st.Close()
			if err := st.EnsureSchema(ctx); err != nil {
				log.Error("ensure schema", "error", err)
				st.Close()
				st = nil
			}
		}
	}

	for _, res := range sum.Tickers {
		if res.State != pipeline.StateSuccess {
			continue
		}
		base := strings.ReplaceAll(res.Ticker, ".", "_")
		path := filepath.Join(seriesDir, base+"."+saver.Extension())
		if err := saver.Save(res.Series, path); err != nil {
			log.Error("save series", "ticker", res.Ticker, "error", err)
			continue
		}
		if err := sink.WriteJSON(filepath.Join(reportDir, base+"_quality.json"), res.Report); err != nil {
			log.Error("save report", "ticker", res.Ticker, "error", err)
		}
		if st != nil {
			if err := st.SaveSeries(ctx, res.Series); err != nil {
				log.Error("persist series", "ticker", res.Ticker, "error", err)
			} else if err := st.SaveReport(ctx, res.Report); err != nil {
				log.Error("persist report", "ticker", res.Ticker, "error", err)
			}
		}
	}

	if err := sink.WriteJSON(filepath.Join(cfg.Run.OutDir, "run_summary.json"), sum); err != nil {
		log.Error("save summary", "error", err)
	}

	if len(sum.Exhausted) > 0 {
		notifier := buildNotifier(cfg)
		defer notifier.Close()
		attempts := map[string]int{}
		for _, res := range sum.Tickers {
			attempts[res.Ticker] = len(res.Attempts)
		}
		for _, t := range sum.Exhausted {
			n := notify.Notice{
				RunID:    sum.RunID,
				Ticker:   t,
				Attempts: attempts[t],
				Guidance: notify.Guidance(t),
				At:       time.Now().UTC(),
			}
			if err := notifier.Notify(ctx, n); err != nil {
				log.Error("notify", "ticker", t, "error", err)
			}
		}
	}

	if sum.SuccessRatio == 0 {
		os.Exit(1)
	}
}

// buildChain assembles the fallback chain in configured priority order.
// Every network source is wrapped with its token bucket, then the shared
// retry policy; browser and manual sources self-limit and are used as-is.
func buildChain(cfg config.Config, hc *httpx.Client) []source.Adapter {
	retryWrap := func(a source.Adapter) source.Adapter {
		return &ratelimit.Retry{
			A:          a,
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
			MaxDelay:   time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		}
	}
	limit := func(a source.Adapter, perMinute, burst int) source.Adapter {
		return retryWrap(&ratelimit.Limited{
			A:  a,
			TB: ratelimit.PerWindow(perMinute, time.Minute, burst),
		})
	}

	var chain []source.Adapter
	for _, name := range cfg.Run.Priority {
		switch strings.ToLower(name) {
		case "yahoo":
			if cfg.Yahoo.Enabled {
				chain = append(chain, limit(
					yahoo.New(yahoo.Config{BaseURL: cfg.Yahoo.Endpoint}, hc),
					cfg.Yahoo.MaxRequestsPerMinute, cfg.Yahoo.Burst))
			}
		case "stooq":
			if cfg.Stooq.Enabled {
				chain = append(chain, limit(
					stooq.New(stooq.Config{BaseURL: cfg.Stooq.Endpoint}, hc),
					cfg.Stooq.MaxRequestsPerMinute, cfg.Stooq.Burst))
			}
		case "alphavantage":
			if cfg.AlphaVantage.Enabled {
				chain = append(chain, limit(
					alphavantage.New(alphavantage.Config{
						APIKey:  cfg.AlphaVantage.APIKey,
						BaseURL: cfg.AlphaVantage.Endpoint,
					}, hc),
					cfg.AlphaVantage.MaxRequestsPerMinute, cfg.AlphaVantage.Burst))
			}
		case "browser":
			if cfg.Browser.Enabled && cfg.Browser.Command != "" {
				chain = append(chain, browser.New(browser.Config{
					Command: cfg.Browser.Command,
					Args:    cfg.Browser.Args,
					Timeout: time.Duration(cfg.Browser.TimeoutSec) * time.Second,
				}))
			}
		case "manual":
			if cfg.Manual.Enabled {
				chain = append(chain, manual.New(manual.Config{DropDir: cfg.Manual.DropDir}))
			}
		}
	}
	return chain
}

func buildNotifier(cfg config.Config) notify.Notifier {
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		return notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	return &notify.LogNotifier{}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
