package sink

import (
	"encoding/json"
	"os"

	"idxdata/internal/bar"
)

// JSONSaver writes the series as an indented JSON array of bars. Missing
// values are emitted as null; NaN is not representable in JSON.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

type jsonRow struct {
	Date     string   `json:"date"`
	Ticker   string   `json:"ticker"`
	Open     *float64 `json:"open"`
	High     *float64 `json:"high"`
	Low      *float64 `json:"low"`
	Close    float64  `json:"close"`
	Volume   *int64   `json:"volume"`
	AdjClose *float64 `json:"adj_close,omitempty"`
}

func (JSONSaver) Save(s *bar.Series, path string) error {
	rows := make([]jsonRow, 0, len(s.Bars))
	for _, b := range s.Bars {
		rows = append(rows, jsonRow{
			Date:     b.Date.Format("2006-01-02"),
			Ticker:   b.Ticker,
			Open:     optFloat(b.Open),
			High:     optFloat(b.High),
			Low:      optFloat(b.Low),
			Close:    b.Close,
			Volume:   b.Volume,
			AdjClose: b.AdjClose,
		})
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
