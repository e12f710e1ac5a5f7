// Package normalize converts a raw source payload into the canonical bar
// series. Dialect detection is signature-based on the header; column
// mapping goes through a fixed alias table that includes the localized
// field names found in IDX exports.
package normalize

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"idxdata/internal/bar"
	"idxdata/internal/source"
)

// Options carry the adapter's request context. Ticker is used when the
// payload itself has no ticker column; it is never invented.
type Options struct {
	Ticker string
}

// Result is the outcome of normalizing one payload. Dropped counts rows
// whose date or close could not be parsed; they are logged by the caller,
// never fatal.
type Result struct {
	Series  bar.Series
	Dialect source.Dialect
	Dropped int
}

// aliases maps canonicalized header names to canonical fields. Indonesian
// names come from IDX trading-data exports.
var aliases = map[string]string{
	"date":           "date",
	"tanggal":        "date",
	"tgl":            "date",
	"timestamp":      "date",
	"open":           "open",
	"open_price":     "open",
	"pembukaan":      "open",
	"high":           "high",
	"highest":        "high",
	"tertinggi":      "high",
	"low":            "low",
	"lowest":         "low",
	"terendah":       "low",
	"close":          "close",
	"close_price":    "close",
	"penutupan":      "close",
	"volume":         "volume",
	"vol":            "volume",
	"adj_close":      "adj_close",
	"adjclose":       "adj_close",
	"adjusted_close": "adj_close",
	"ticker":         "ticker",
	"kode":           "ticker",
	"kode_saham":     "ticker",
	"code":           "ticker",
	"stock_code":     "ticker",
}

// canonicalName normalizes one header cell: trim, lower-case, join word
// separators with underscores. "Adj Close" and "adj.close" both become
// "adj_close".
func canonicalName(col string) string {
	s := strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-', '/':
			return '_'
		}
		return r
	}, s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// DetectDialect fingerprints a header row. Best match wins; unknown is a
// valid answer and still gets best-effort alias mapping later.
func DetectDialect(header []string) source.Dialect {
	names := make(map[string]bool, len(header))
	var first string
	for i, c := range header {
		n := canonicalName(c)
		names[n] = true
		if i == 0 {
			first = n
		}
	}
	switch {
	case names["adj_close"] || names["adjclose"] || names["adjusted_close"]:
		return source.DialectYahoo
	case names["kode"] || names["kode_saham"] || names["code"] || names["stock_code"]:
		return source.DialectIDX
	case first == "timestamp":
		return source.DialectAlphaVantage
	case len(header) == 6 && names["date"] && names["open"] && names["high"] && names["low"] && names["close"] && names["volume"]:
		return source.DialectStooq
	default:
		return source.DialectUnknown
	}
}

var requiredFields = []string{"date", "open", "high", "low", "close", "volume"}

// dateLayouts are tried in order. DD/MM/YYYY before MM/DD: IDX exports are
// day-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"20060102",
	"2 Jan 2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return bar.Date(t.Year(), t.Month(), t.Day()), true
		}
	}
	return time.Time{}, false
}

func parseFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	switch strings.ToLower(s) {
	case "", "-", "null", "n/a", "nan":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Normalize maps one payload to a canonical series: alias-mapped columns,
// permissively parsed dates, rows sorted ascending and deduplicated by
// date with the last occurrence winning.
func Normalize(p *source.RawPayload, opt Options) (*Result, error) {
	rows, err := readCSV(p.Data)
	if err != nil {
		return nil, source.Wrap(source.KindParseError, p.SourceID, err)
	}
	if len(rows) < 1 {
		return nil, source.Errf(source.KindParseError, p.SourceID, "payload has no header row")
	}

	header := rows[0]
	dialect := p.Dialect
	if dialect == "" || dialect == source.DialectUnknown {
		dialect = DetectDialect(header)
	}

	// Column index per canonical field; the first alias hit wins.
	idx := make(map[string]int, len(header))
	for i, col := range header {
		name := canonicalName(col)
		field, ok := aliases[name]
		if !ok {
			continue
		}
		if _, taken := idx[field]; !taken {
			idx[field] = i
		}
	}

	var missing []string
	for _, f := range requiredFields {
		if _, ok := idx[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, source.Errf(source.KindParseError, p.SourceID,
			"dialect %s: required fields missing after mapping: %s", dialect, strings.Join(missing, ", "))
	}

	ticker := strings.ToUpper(strings.TrimSpace(opt.Ticker))
	if ticker == "" {
		ticker = strings.ToUpper(strings.TrimSpace(p.Ticker))
	}

	cell := func(row []string, field string) string {
		i, ok := idx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	byDate := make(map[time.Time]bar.Bar, len(rows)-1)
	dropped := 0
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		date, ok := parseDate(cell(row, "date"))
		if !ok {
			dropped++
			continue
		}
		closeV, ok := parseFloat(cell(row, "close"))
		if !ok {
			dropped++
			continue
		}

		b := bar.Bar{Ticker: ticker, Date: date, Close: closeV}
		b.Open = floatOrNaN(cell(row, "open"))
		b.High = floatOrNaN(cell(row, "high"))
		b.Low = floatOrNaN(cell(row, "low"))
		if v, ok := parseFloat(cell(row, "volume")); ok {
			vol := int64(v)
			b.Volume = &vol
		}
		if v, ok := parseFloat(cell(row, "adj_close")); ok {
			adj := v
			b.AdjClose = &adj
		}
		if t := rowTicker(cell(row, "ticker"), ticker); t != "" {
			b.Ticker = t
		}
		// Last occurrence wins for duplicate dates.
		byDate[date] = b
	}

	bars := make([]bar.Bar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	return &Result{
		Series:  bar.Series{Ticker: ticker, Bars: bars},
		Dialect: dialect,
		Dropped: dropped,
	}, nil
}

func floatOrNaN(s string) float64 {
	if v, ok := parseFloat(s); ok {
		return v
	}
	return math.NaN()
}

// rowTicker completes an in-payload ticker with the request's exchange
// suffix when the export only carries the bare code (IDX style).
func rowTicker(raw, requested string) string {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return ""
	}
	if !strings.Contains(t, ".") {
		if i := strings.IndexByte(requested, '.'); i > 0 {
			t += requested[i:]
		}
	}
	return t
}

// readCSV parses the payload, sniffing the delimiter: IDX exports use
// semicolons, everything else commas.
func readCSV(data []byte) ([][]string, error) {
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	if bytes.Contains(firstLine, []byte(";")) && !bytes.Contains(firstLine, []byte(",")) {
		r.Comma = ';'
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}
