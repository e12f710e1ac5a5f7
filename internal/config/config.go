package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"idxdata/internal/store"
)

type Run struct {
	Tickers           []string `json:"tickers" yaml:"tickers"`
	RangeDays         int      `json:"range_days" yaml:"range_days"`
	Workers           int      `json:"workers" yaml:"workers"`
	OutDir            string   `json:"out_dir" yaml:"out_dir"`
	Format            string   `json:"format" yaml:"format"`
	LogLevel          string   `json:"log_level" yaml:"log_level"`
	RequestTimeoutSec int      `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	// Priority is the fallback chain order by adapter name.
	Priority []string `json:"priority" yaml:"priority"`
}

type Retry struct {
	MaxRetries  int `json:"max_retries" yaml:"max_retries"`
	BaseDelayMS int `json:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMS  int `json:"max_delay_ms" yaml:"max_delay_ms"`
}

type Quality struct {
	MinCompleteness   float64 `json:"min_completeness" yaml:"min_completeness"`
	MaxAgeDays        int     `json:"max_age_days" yaml:"max_age_days"`
	MaxExtremeReturns int     `json:"max_extreme_returns" yaml:"max_extreme_returns"`
	ExtremeReturn     float64 `json:"extreme_return" yaml:"extreme_return"`
}

type Yahoo struct {
	Enabled              bool   `json:"enabled" yaml:"enabled"`
	Endpoint             string `json:"endpoint" yaml:"endpoint"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                int    `json:"burst" yaml:"burst"`
}

type Stooq struct {
	Enabled              bool   `json:"enabled" yaml:"enabled"`
	Endpoint             string `json:"endpoint" yaml:"endpoint"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                int    `json:"burst" yaml:"burst"`
}

type AlphaVantage struct {
	Enabled              bool   `json:"enabled" yaml:"enabled"`
	APIKey               string `json:"api_key" yaml:"api_key"`
	Endpoint             string `json:"endpoint" yaml:"endpoint"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                int    `json:"burst" yaml:"burst"`
}

type Browser struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Command    string   `json:"command" yaml:"command"`
	Args       []string `json:"args" yaml:"args"`
	TimeoutSec int      `json:"timeout_sec" yaml:"timeout_sec"`
}

type Manual struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DropDir string `json:"drop_dir" yaml:"drop_dir"`
}

type Kafka struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type Config struct {
	Run          Run          `json:"run" yaml:"run"`
	Retry        Retry        `json:"retry" yaml:"retry"`
	Quality      Quality      `json:"quality" yaml:"quality"`
	Yahoo        Yahoo        `json:"yahoo" yaml:"yahoo"`
	Stooq        Stooq        `json:"stooq" yaml:"stooq"`
	AlphaVantage AlphaVantage `json:"alphavantage" yaml:"alphavantage"`
	Browser      Browser      `json:"browser" yaml:"browser"`
	Manual       Manual       `json:"manual" yaml:"manual"`
	Database     store.Config `json:"database" yaml:"database"`
	Kafka        Kafka        `json:"kafka" yaml:"kafka"`
}

func Default() Config {
	return Config{
		Run: Run{
			Tickers:           []string{"BBCA.JK", "GOTO.JK", "BUMI.JK", "BBRI.JK", "TLKM.JK"},
			RangeDays:         180,
			Workers:           4,
			OutDir:            "data",
			Format:            "csv",
			LogLevel:          "info",
			RequestTimeoutSec: 15,
			Priority:          []string{"yahoo", "stooq", "alphavantage", "browser", "manual"},
		},
		Retry: Retry{
			MaxRetries:  3,
			BaseDelayMS: 500,
			MaxDelayMS:  8000,
		},
		Quality: Quality{
			MinCompleteness:   95,
			MaxAgeDays:        2,
			MaxExtremeReturns: 5,
			ExtremeReturn:     0.5,
		},
		Yahoo: Yahoo{
			Enabled:              true,
			MaxRequestsPerMinute: 10,
			Burst:                2,
		},
		Stooq: Stooq{
			Enabled:              true,
			MaxRequestsPerMinute: 10,
			Burst:                2,
		},
		AlphaVantage: AlphaVantage{
			Enabled: false,
			// free tier: 5 calls per minute, 500 per day
			MaxRequestsPerMinute: 5,
			Burst:                1,
		},
		Browser: Browser{
			Enabled:    false,
			TimeoutSec: 120,
		},
		Manual: Manual{
			Enabled: true,
			DropDir: filepath.Join("data", "raw", "manual"),
		},
		Database: store.Config{
			Enabled: false,
			Port:    5432,
			SSLMode: "prefer",
		},
		Kafka: Kafka{
			Enabled: false,
			Topic:   "idxdata.manual-intervention",
		},
	}
}

// Load reads config from path: JSON by default, YAML for .yaml/.yml files
// (with ${VAR} expansion). If path is empty or the file does not exist it
// returns defaults. Environment variables override select fields for
// secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				expanded := os.ExpandEnv(string(b))
				if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
					return cfg, fmt.Errorf("parse config yaml: %w", err)
				}
			default:
				if err := json.Unmarshal(b, &cfg); err != nil {
					return cfg, fmt.Errorf("parse config: %w", err)
				}
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TICKERS"); v != "" {
		cfg.Run.Tickers = splitCSV(v)
	}
	if v := os.Getenv("OUT_DIR"); v != "" {
		cfg.Run.OutDir = v
	}
	if v := os.Getenv("SAVE_FORMAT"); v != "" {
		cfg.Run.Format = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Run.LogLevel = v
	}
	if v := os.Getenv("RANGE_DAYS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Run.RangeDays = x
		}
	}
	if v := os.Getenv("WORKERS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Run.Workers = x
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Run.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
		cfg.AlphaVantage.Enabled = true
	}
	if v := os.Getenv("BROWSER_COMMAND"); v != "" {
		cfg.Browser.Command = v
		cfg.Browser.Enabled = true
	}
	if v := os.Getenv("MANUAL_DROP_DIR"); v != "" {
		cfg.Manual.DropDir = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
		cfg.Database.Enabled = true
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Database.Port = x
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitCSV(v)
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
