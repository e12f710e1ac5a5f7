// Package quality scores a canonical series along four independent
// dimensions and produces a pass/fail verdict. Check is a pure function of
// its inputs: no I/O, same series in, same report out.
package quality

import (
	"fmt"
	"math"
	"time"

	"idxdata/internal/bar"
)

// Thresholds carry the configurable gates. The staleness limit and the
// extreme-return cap are deliberately configuration, not constants; the
// institutional policy behind them is not settled.
type Thresholds struct {
	MinCompleteness   float64 // percent, default 95
	MaxAgeDays        int     // default 2
	MaxExtremeReturns int     // default 5
	ExtremeReturn     float64 // absolute daily return treated as extreme, default 0.5
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinCompleteness:   95,
		MaxAgeDays:        2,
		MaxExtremeReturns: 5,
		ExtremeReturn:     0.5,
	}
}

type Completeness struct {
	Score     float64            `json:"score"`
	PerColumn map[string]float64 `json:"per_column"`
	Pass      bool               `json:"pass"`
}

type Consistency struct {
	Pass   bool     `json:"pass"`
	Issues []string `json:"issues"`
}

type Timeliness struct {
	LatestDate string `json:"latest_date"`
	AgeDays    int    `json:"age_days"`
	Pass       bool   `json:"pass"`
}

type Accuracy struct {
	ExtremeReturnCount int  `json:"extreme_return_count"`
	ZeroVolumeDays     int  `json:"zero_volume_days"`
	Pass               bool `json:"pass"`
}

type Report struct {
	Ticker        string       `json:"ticker"`
	Completeness  Completeness `json:"completeness"`
	Consistency   Consistency  `json:"consistency"`
	Timeliness    Timeliness   `json:"timeliness"`
	Accuracy      Accuracy     `json:"accuracy"`
	OverallStatus string       `json:"overall_status"`
	CheckedAt     time.Time    `json:"checked_at"`
}

func (r *Report) Passed() bool { return r.OverallStatus == "PASS" }

// Check runs the four quality dimensions over a series. now is injected so
// timeliness is testable; callers pass time.Now().UTC().
func Check(s *bar.Series, th Thresholds, now time.Time) *Report {
	r := &Report{
		Ticker:       s.Ticker,
		Completeness: checkCompleteness(s, th),
		Consistency:  checkConsistency(s),
		Timeliness:   checkTimeliness(s, th, now),
		Accuracy:     checkAccuracy(s, th),
		CheckedAt:    now,
	}
	if r.Completeness.Pass && r.Consistency.Pass && r.Timeliness.Pass && r.Accuracy.Pass {
		r.OverallStatus = "PASS"
	} else {
		r.OverallStatus = "FAIL"
	}
	return r
}

// checkCompleteness computes the non-null fraction per column, averaged.
// The adj_close column only participates when the source provided it at
// all; a source that never has adjusted closes is not penalized for it.
func checkCompleteness(s *bar.Series, th Thresholds) Completeness {
	n := len(s.Bars)
	if n == 0 {
		return Completeness{Score: 0, PerColumn: map[string]float64{}, Pass: false}
	}

	present := map[string]int{"open": 0, "high": 0, "low": 0, "close": 0, "volume": 0}
	withAdj := s.HasAdjClose()
	if withAdj {
		present["adj_close"] = 0
	}
	for _, b := range s.Bars {
		if !math.IsNaN(b.Open) {
			present["open"]++
		}
		if !math.IsNaN(b.High) {
			present["high"]++
		}
		if !math.IsNaN(b.Low) {
			present["low"]++
		}
		if !math.IsNaN(b.Close) {
			present["close"]++
		}
		if b.Volume != nil {
			present["volume"]++
		}
		if withAdj && b.AdjClose != nil {
			present["adj_close"]++
		}
	}

	perColumn := make(map[string]float64, len(present))
	total := 0.0
	for col, cnt := range present {
		pct := float64(cnt) / float64(n) * 100
		perColumn[col] = pct
		total += pct
	}
	score := total / float64(len(present))
	return Completeness{Score: score, PerColumn: perColumn, Pass: score >= th.MinCompleteness}
}

// checkConsistency applies the structural rules with zero tolerance. One
// issue entry per violated rule, carrying the violating row count.
func checkConsistency(s *bar.Series) Consistency {
	var highLow, closeRange, negVolume int
	for _, b := range s.Bars {
		if b.Volume != nil && *b.Volume < 0 {
			negVolume++
		}
		if !math.IsNaN(b.High) && !math.IsNaN(b.Low) && b.High < b.Low {
			highLow++
			// the range itself is broken; close-vs-range is meaningless
			continue
		}
		if (!math.IsNaN(b.Low) && b.Close < b.Low) || (!math.IsNaN(b.High) && b.Close > b.High) {
			closeRange++
		}
	}

	issues := []string{}
	if highLow > 0 {
		issues = append(issues, fmt.Sprintf("high < low: %d rows", highLow))
	}
	if closeRange > 0 {
		issues = append(issues, fmt.Sprintf("close outside [low, high]: %d rows", closeRange))
	}
	if negVolume > 0 {
		issues = append(issues, fmt.Sprintf("negative volume: %d rows", negVolume))
	}
	return Consistency{Pass: len(issues) == 0, Issues: issues}
}

func checkTimeliness(s *bar.Series, th Thresholds, now time.Time) Timeliness {
	if len(s.Bars) == 0 {
		return Timeliness{Pass: false}
	}
	latest := s.Bars[len(s.Bars)-1].Date
	age := int(now.Sub(latest).Hours() / 24)
	if age < 0 {
		age = 0
	}
	return Timeliness{
		LatestDate: latest.Format("2006-01-02"),
		AgeDays:    age,
		Pass:       age < th.MaxAgeDays,
	}
}

// checkAccuracy counts close-to-close daily returns beyond the extreme
// threshold. Zero-volume days are recorded but informational only: a
// suspended stock is a market fact, not a data defect.
func checkAccuracy(s *bar.Series, th Thresholds) Accuracy {
	var extreme, zeroVol int
	for i, b := range s.Bars {
		if i > 0 {
			prev := s.Bars[i-1].Close
			if prev > 0 {
				ret := b.Close/prev - 1
				if math.Abs(ret) > th.ExtremeReturn {
					extreme++
				}
			}
		}
		if b.Volume != nil && *b.Volume == 0 {
			zeroVol++
		}
	}
	return Accuracy{
		ExtremeReturnCount: extreme,
		ZeroVolumeDays:     zeroVol,
		Pass:               extreme < th.MaxExtremeReturns,
	}
}
