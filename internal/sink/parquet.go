package sink

import (
	"math"

	"github.com/parquet-go/parquet-go"

	"idxdata/internal/bar"
)

// ParquetSaver writes the series as one Parquet file per ticker.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

// row mirrors the canonical columnar schema. Floats use NaN-free optional
// encoding so readers see real nulls instead of NaN sentinels.
type row struct {
	Date     string   `parquet:"date"`
	Ticker   string   `parquet:"ticker"`
	Open     *float64 `parquet:"open,optional"`
	High     *float64 `parquet:"high,optional"`
	Low      *float64 `parquet:"low,optional"`
	Close    float64  `parquet:"close"`
	Volume   *int64   `parquet:"volume,optional"`
	AdjClose *float64 `parquet:"adj_close,optional"`
}

func (ParquetSaver) Save(s *bar.Series, path string) error {
	rows := make([]row, 0, len(s.Bars))
	for _, b := range s.Bars {
		rows = append(rows, row{
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
	return parquet.WriteFile(path, rows)
}

func optFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
