// Command validate scores an existing CSV file offline: it normalizes the
// file through the same dialect detection the pipeline uses, runs the
// quality gates and prints the report as JSON. Exit status 1 means FAIL.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"idxdata/internal/config"
	"idxdata/internal/normalize"
	"idxdata/internal/quality"
	"idxdata/internal/source"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to config file (json or yaml)")
		ticker  = flag.String("ticker", "", "ticker the file belongs to, e.g. BBCA.JK (default: from filename)")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: validate [-config file] [-ticker XXXX.JK] <csv file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	t := *ticker
	if t == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		base = strings.ToUpper(strings.ReplaceAll(base, "_", "."))
		if !strings.Contains(base, ".") {
			base += ".JK"
		}
		t = base
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(2)
	}

	res, err := normalize.Normalize(&source.RawPayload{
		SourceID: "file",
		Ticker:   t,
		Data:     data,
	}, normalize.Options{Ticker: t})
	if err != nil {
		fmt.Fprintln(os.Stderr, "normalize:", err)
		os.Exit(2)
	}
	if res.Series.Len() == 0 {
		fmt.Fprintln(os.Stderr, "no parseable records in", path)
		os.Exit(2)
	}

	report := quality.Check(&res.Series, quality.Thresholds{
		MinCompleteness:   cfg.Quality.MinCompleteness,
		MaxAgeDays:        cfg.Quality.MaxAgeDays,
		MaxExtremeReturns: cfg.Quality.MaxExtremeReturns,
		ExtremeReturn:     cfg.Quality.ExtremeReturn,
	}, time.Now().UTC())

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal:", err)
		os.Exit(2)
	}
	fmt.Println(string(out))

	if !report.Passed() {
		os.Exit(1)
	}
}
