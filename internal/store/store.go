// Package store persists canonical series and quality reports to
// PostgreSQL. It is optional: runs without a configured database fall back
// to the file sinks alone.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"idxdata/internal/bar"
	"idxdata/internal/quality"
)

// Config describes one database connection.
type Config struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Name     string `json:"name" yaml:"name"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
	MinConns int    `json:"min_conns" yaml:"min_conns"`
	MaxConns int    `json:"max_conns" yaml:"max_conns"`
}

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg Config) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// Connect creates a connection pool and verifies it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store writes pipeline output rows.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables on first use.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bars (
	ticker     text        NOT NULL,
	date       date        NOT NULL,
	open       double precision,
	high       double precision,
	low        double precision,
	close      double precision NOT NULL,
	volume     bigint,
	adj_close  double precision,
	PRIMARY KEY (ticker, date)
);
CREATE TABLE IF NOT EXISTS quality_reports (
	ticker         text        NOT NULL,
	checked_at     timestamptz NOT NULL,
	overall_status text        NOT NULL,
	report         jsonb       NOT NULL,
	PRIMARY KEY (ticker, checked_at)
);`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveSeries upserts all bars of a series in one batch; the latest write
// wins per (ticker, date).
func (s *Store) SaveSeries(ctx context.Context, series *bar.Series) error {
	batch := &pgx.Batch{}
	for _, b := range series.Bars {
		batch.Queue(`
INSERT INTO bars (ticker, date, open, high, low, close, volume, adj_close)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (ticker, date) DO UPDATE SET
	open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
	close = EXCLUDED.close, volume = EXCLUDED.volume, adj_close = EXCLUDED.adj_close`,
			b.Ticker, b.Date, nullFloat(b.Open), nullFloat(b.High), nullFloat(b.Low),
			b.Close, b.Volume, b.AdjClose)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range series.Bars {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert bars for %s: %w", series.Ticker, err)
		}
	}
	return nil
}

// SaveReport inserts one quality report as a jsonb row.
func (s *Store) SaveReport(ctx context.Context, r *quality.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO quality_reports (ticker, checked_at, overall_status, report)
VALUES ($1, $2, $3, $4)
ON CONFLICT (ticker, checked_at) DO NOTHING`,
		r.Ticker, r.CheckedAt, r.OverallStatus, data)
	if err != nil {
		return fmt.Errorf("insert report for %s: %w", r.Ticker, err)
	}
	return nil
}

// nullFloat converts the bar NaN convention into SQL NULL.
func nullFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
