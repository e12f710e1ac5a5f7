package sink

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"

	"idxdata/internal/bar"
)

// CSVSaver writes the canonical columnar layout:
// Date,Ticker,Open,High,Low,Close,Volume[,Adj_Close]. Missing values
// become empty cells.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(s *bar.Series, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	withAdj := s.HasAdjClose()
	header := []string{"Date", "Ticker", "Open", "High", "Low", "Close", "Volume"}
	if withAdj {
		header = append(header, "Adj_Close")
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, b := range s.Bars {
		row := []string{
			b.Date.Format("2006-01-02"),
			b.Ticker,
			floatCell(b.Open),
			floatCell(b.High),
			floatCell(b.Low),
			floatCell(b.Close),
			volumeCell(b.Volume),
		}
		if withAdj {
			if b.AdjClose != nil {
				row = append(row, floatCell(*b.AdjClose))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func floatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func volumeCell(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
