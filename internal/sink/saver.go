// Package sink persists canonical series, quality reports and run
// summaries. It is a thin collaborator: nothing here feeds back into the
// acquisition or validation logic.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"idxdata/internal/bar"
)

// SeriesSaver writes one canonical series to a file. The high level picks
// the implementation; everything below depends only on the interface.
type SeriesSaver interface {
	Save(s *bar.Series, path string) error
	Extension() string
}

// NewSeriesSaver returns the saver for a format name (csv, json, parquet),
// or nil when the format is not supported.
func NewSeriesSaver(format string) SeriesSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "json":
		return JSONSaver{}
	case "parquet":
		return ParquetSaver{}
	default:
		return nil
	}
}

// MustSeriesSaver is NewSeriesSaver but panics on an unsupported format.
func MustSeriesSaver(format string) SeriesSaver {
	s := NewSeriesSaver(format)
	if s == nil {
		panic(fmt.Sprintf("sink: unsupported format %q (use: csv, json, parquet)", format))
	}
	return s
}

// WriteJSON writes any report-shaped value as indented JSON, creating the
// parent directory as needed.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
