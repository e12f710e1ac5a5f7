package bar

import (
	"fmt"
	"math"
	"regexp"
	"time"
)

// tickerRE matches IDX-style symbols: four letters plus an exchange suffix
// (e.g. BBCA.JK).
var tickerRE = regexp.MustCompile(`^[A-Z]{4}\.[A-Z]{2}$`)

// Bar is one canonical daily OHLCV record. All sources are mapped into this
// shape before anything downstream sees the data.
//
// Open/High/Low may be NaN when the source omitted the value; Close is never
// NaN because rows without a parseable close are dropped during
// normalization. Volume and AdjClose are nil when absent.
type Bar struct {
	Ticker   string    `json:"ticker"`
	Date     time.Time `json:"date"` // calendar date, UTC midnight
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   *int64    `json:"volume,omitempty"`
	AdjClose *float64  `json:"adj_close,omitempty"`
}

// Validate checks the structural invariants of a single bar. NaN/nil fields
// are skipped: a missing value is a completeness problem, not a consistency
// violation.
func (b Bar) Validate() error {
	if !tickerRE.MatchString(b.Ticker) {
		return fmt.Errorf("ticker %q does not match XXXX.YY", b.Ticker)
	}
	if b.Date.IsZero() {
		return fmt.Errorf("%s: zero date", b.Ticker)
	}
	if math.IsNaN(b.Close) || b.Close <= 0 {
		return fmt.Errorf("%s %s: close %v not positive", b.Ticker, b.Date.Format("2006-01-02"), b.Close)
	}
	for name, v := range map[string]float64{"open": b.Open, "high": b.High, "low": b.Low} {
		if !math.IsNaN(v) && v <= 0 {
			return fmt.Errorf("%s %s: %s %v not positive", b.Ticker, b.Date.Format("2006-01-02"), name, v)
		}
	}
	if !math.IsNaN(b.High) && !math.IsNaN(b.Low) && b.High < b.Low {
		return fmt.Errorf("%s %s: high %v < low %v", b.Ticker, b.Date.Format("2006-01-02"), b.High, b.Low)
	}
	if !math.IsNaN(b.Low) && b.Close < b.Low {
		return fmt.Errorf("%s %s: close %v below low %v", b.Ticker, b.Date.Format("2006-01-02"), b.Close, b.Low)
	}
	if !math.IsNaN(b.High) && b.Close > b.High {
		return fmt.Errorf("%s %s: close %v above high %v", b.Ticker, b.Date.Format("2006-01-02"), b.Close, b.High)
	}
	if b.Volume != nil && *b.Volume < 0 {
		return fmt.Errorf("%s %s: negative volume %d", b.Ticker, b.Date.Format("2006-01-02"), *b.Volume)
	}
	if b.AdjClose != nil && *b.AdjClose <= 0 {
		return fmt.Errorf("%s %s: adj close %v not positive", b.Ticker, b.Date.Format("2006-01-02"), *b.AdjClose)
	}
	return nil
}

// Series is a ticker-scoped sequence of bars, strictly increasing by date
// with one bar per date. The normalizer is the only producer; once a series
// is handed to the validator it is not mutated.
type Series struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

func (s *Series) Len() int { return len(s.Bars) }

// DateRange returns the first and last bar dates, or zero times for an
// empty series.
func (s *Series) DateRange() (from, to time.Time) {
	if len(s.Bars) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Bars[0].Date, s.Bars[len(s.Bars)-1].Date
}

// HasAdjClose reports whether any bar carries an adjusted close.
func (s *Series) HasAdjClose() bool {
	for _, b := range s.Bars {
		if b.AdjClose != nil {
			return true
		}
	}
	return false
}

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
