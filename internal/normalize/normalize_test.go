package normalize

import (
	"math"
	"testing"
	"time"

	"idxdata/internal/bar"
	"idxdata/internal/source"
)

func TestDetectDialect(t *testing.T) {
	cases := []struct {
		name   string
		header []string
		want   source.Dialect
	}{
		{"yahoo", []string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"}, source.DialectYahoo},
		{"stooq", []string{"Date", "Open", "High", "Low", "Close", "Volume"}, source.DialectStooq},
		{"alphavantage", []string{"timestamp", "open", "high", "low", "close", "volume"}, source.DialectAlphaVantage},
		{"idx english", []string{"Date", "Stock Code", "Open", "High", "Low", "Close", "Volume"}, source.DialectIDX},
		{"idx indonesian", []string{"Tanggal", "Kode Saham", "Pembukaan", "Tertinggi", "Terendah", "Penutupan", "Vol"}, source.DialectIDX},
		{"unknown", []string{"a", "b", "c"}, source.DialectUnknown},
		{"bom prefix", []string{"\ufeffDate", "Open", "High", "Low", "Close", "Adj Close", "Volume"}, source.DialectYahoo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectDialect(tc.header); got != tc.want {
				t.Fatalf("DetectDialect(%v) = %s, want %s", tc.header, got, tc.want)
			}
		})
	}
}

func TestNormalizeYahoo(t *testing.T) {
	payload := &source.RawPayload{
		SourceID: "Yahoo",
		Dialect:  source.DialectYahoo,
		Ticker:   "BBCA.JK",
		Data: []byte(`Date,Open,High,Low,Close,Adj Close,Volume
2026-03-02,9800,9950,9750,9900,9850.5,12345678
2026-03-03,9900,10000,9850,9975,9925.0,9876543
`),
	}
	res, err := Normalize(payload, Options{Ticker: "BBCA.JK"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Dialect != source.DialectYahoo {
		t.Errorf("dialect = %s, want yahoo", res.Dialect)
	}
	if res.Dropped != 0 {
		t.Errorf("dropped = %d, want 0", res.Dropped)
	}
	if res.Series.Len() != 2 {
		t.Fatalf("len = %d, want 2", res.Series.Len())
	}
	b := res.Series.Bars[0]
	if b.Ticker != "BBCA.JK" {
		t.Errorf("ticker = %q", b.Ticker)
	}
	if !b.Date.Equal(bar.Date(2026, time.March, 2)) {
		t.Errorf("date = %v", b.Date)
	}
	if b.Close != 9900 {
		t.Errorf("close = %v", b.Close)
	}
	if b.AdjClose == nil || *b.AdjClose != 9850.5 {
		t.Errorf("adj close = %v", b.AdjClose)
	}
	if b.Volume == nil || *b.Volume != 12345678 {
		t.Errorf("volume = %v", b.Volume)
	}
	if err := b.Validate(); err != nil {
		t.Errorf("normalized bar invalid: %v", err)
	}
}

func TestNormalizeIDXIndonesian(t *testing.T) {
	// semicolon delimited, day-first dates, thousands separators, bare code
	payload := &source.RawPayload{
		SourceID: "Manual",
		Ticker:   "GOTO.JK",
		Data: []byte(`Tanggal;Kode Saham;Pembukaan;Tertinggi;Terendah;Penutupan;Vol
02/03/2026;GOTO;62;64;61;63;"1,234,567"
03/03/2026;GOTO;63;65;62;64;"2,345,678"
`),
	}
	res, err := Normalize(payload, Options{Ticker: "GOTO.JK"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Dialect != source.DialectIDX {
		t.Errorf("dialect = %s, want idx", res.Dialect)
	}
	if res.Series.Len() != 2 {
		t.Fatalf("len = %d, want 2", res.Series.Len())
	}
	b := res.Series.Bars[0]
	if b.Ticker != "GOTO.JK" {
		t.Errorf("ticker = %q, want suffix completed", b.Ticker)
	}
	if !b.Date.Equal(bar.Date(2026, time.March, 2)) {
		t.Errorf("date = %v, want 2026-03-02 (day first)", b.Date)
	}
	if b.Volume == nil || *b.Volume != 1234567 {
		t.Errorf("volume = %v, want 1234567", b.Volume)
	}
}

func TestNormalizeDropsAndDedupes(t *testing.T) {
	payload := &source.RawPayload{
		SourceID: "Yahoo",
		Ticker:   "BUMI.JK",
		Data: []byte(`Date,Open,High,Low,Close,Volume
2026-03-02,100,110,95,105,1000
not-a-date,100,110,95,105,1000
2026-03-03,105,115,100,null,2000
2026-03-02,101,111,96,106,1500
`),
	}
	res, err := Normalize(payload, Options{Ticker: "BUMI.JK"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Dropped != 2 {
		t.Errorf("dropped = %d, want 2 (bad date + null close)", res.Dropped)
	}
	if res.Series.Len() != 1 {
		t.Fatalf("len = %d, want 1 after dedupe", res.Series.Len())
	}
	// last occurrence of the duplicate date wins
	if got := res.Series.Bars[0].Close; got != 106 {
		t.Errorf("close = %v, want 106", got)
	}
}

func TestNormalizeSortsAscending(t *testing.T) {
	payload := &source.RawPayload{
		SourceID: "AlphaVantage",
		Ticker:   "TLKM.JK",
		Data: []byte(`timestamp,open,high,low,close,volume
2026-03-04,3000,3050,2980,3020,500
2026-03-02,2950,3010,2940,3000,400
2026-03-03,3000,3030,2970,3010,450
`),
	}
	res, err := Normalize(payload, Options{Ticker: "TLKM.JK"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Dialect != source.DialectAlphaVantage {
		t.Errorf("dialect = %s", res.Dialect)
	}
	var prev time.Time
	for _, b := range res.Series.Bars {
		if !prev.IsZero() && !b.Date.After(prev) {
			t.Fatalf("dates not strictly increasing: %v after %v", b.Date, prev)
		}
		prev = b.Date
	}
}

func TestNormalizeMissingColumnsInvalid(t *testing.T) {
	payload := &source.RawPayload{
		SourceID: "Manual",
		Ticker:   "BBRI.JK",
		Data:     []byte("Price,Amount\n100,2\n"),
	}
	_, err := Normalize(payload, Options{Ticker: "BBRI.JK"})
	if err == nil {
		t.Fatal("expected error for unmappable header")
	}
	if k := source.KindOf(err); k != source.KindParseError {
		t.Fatalf("kind = %s, want parse_error", k)
	}
}

func TestNormalizeMissingValuesBecomeNaN(t *testing.T) {
	payload := &source.RawPayload{
		SourceID: "Yahoo",
		Ticker:   "BBCA.JK",
		Data: []byte(`Date,Open,High,Low,Close,Volume
2026-03-02,,9950,9750,9900,
`),
	}
	res, err := Normalize(payload, Options{Ticker: "BBCA.JK"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	b := res.Series.Bars[0]
	if !math.IsNaN(b.Open) {
		t.Errorf("open = %v, want NaN", b.Open)
	}
	if b.Volume != nil {
		t.Errorf("volume = %v, want nil", b.Volume)
	}
}

func TestNormalizeIdempotentOnCanonicalOutput(t *testing.T) {
	in := &source.RawPayload{
		SourceID: "Yahoo",
		Ticker:   "BBCA.JK",
		Data: []byte(`Date,Open,High,Low,Close,Volume
2026-03-02,9800,9950,9750,9900,1000
2026-03-03,9900,10000,9850,9975,2000
`),
	}
	first, err := Normalize(in, Options{Ticker: "BBCA.JK"})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := Normalize(in, Options{Ticker: "BBCA.JK"})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if first.Series.Len() != second.Series.Len() {
		t.Fatalf("lengths differ: %d vs %d", first.Series.Len(), second.Series.Len())
	}
	for i := range first.Series.Bars {
		a, b := first.Series.Bars[i], second.Series.Bars[i]
		if a.Ticker != b.Ticker || !a.Date.Equal(b.Date) || a.Close != b.Close {
			t.Fatalf("bar %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := bar.Date(2026, time.March, 2)
	for _, in := range []string{"2026-03-02", "2026/03/02", "02/03/2026", "20260302", "2 Mar 2026", "Mar 2, 2026"} {
		got, ok := parseDate(in)
		if !ok {
			t.Errorf("parseDate(%q) failed", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseDate(%q) = %v, want %v", in, got, want)
		}
	}
	if _, ok := parseDate("yesterday"); ok {
		t.Error("parseDate accepted garbage")
	}
}
