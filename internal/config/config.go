// Package config exposes strongly typed settings for the backtest and live binaries, loaded from YAML or TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jurichar/high-freq-scalping-tool/internal/paper"
	"github.com/jurichar/high-freq-scalping-tool/internal/strategy"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name" toml:"name"`
	Env         string `yaml:"env" toml:"env"`
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"`
	LogLevel    string `yaml:"log_level" toml:"log_level"`
	LogPretty   bool   `yaml:"log_pretty" toml:"log_pretty"`
}

// Engine holds the account parameters that stay fixed for a run.
type Engine struct {
	InitialCash          float64 `yaml:"initial_cash" toml:"initial_cash"`
	TransactionCost      float64 `yaml:"transaction_cost_fraction" toml:"transaction_cost_fraction"`
	Leverage             float64 `yaml:"leverage" toml:"leverage"`
	Slippage             float64 `yaml:"slippage_fraction" toml:"slippage_fraction"`
	RiskPerTrade         float64 `yaml:"risk_per_trade_fraction" toml:"risk_per_trade_fraction"`
	TrailingStopFraction float64 `yaml:"trailing_stop_fraction" toml:"trailing_stop_fraction"`
	MaxNotionalPerTrade  float64 `yaml:"max_notional_per_trade" toml:"max_notional_per_trade"`
	DistanceMode         string  `yaml:"distance_mode" toml:"distance_mode"`
	FlipPolicy           string  `yaml:"flip_policy" toml:"flip_policy"`
}

// Account converts the engine section into the account configuration.
func (e Engine) Account() paper.Config {
	return paper.Config{
		InitialCash:          e.InitialCash,
		TransactionCost:      e.TransactionCost,
		Leverage:             e.Leverage,
		Slippage:             e.Slippage,
		RiskPerTrade:         e.RiskPerTrade,
		TrailingStopFraction: e.TrailingStopFraction,
		MaxNotionalPerTrade:  e.MaxNotionalPerTrade,
		DistanceMode:         paper.DistanceMode(e.DistanceMode),
		FlipPolicy:           paper.FlipPolicy(e.FlipPolicy),
	}
}

// Validate applies the account's own rules to the engine section.
func (e Engine) Validate() error {
	cfg := e.Account()
	return cfg.Validate()
}

// Data points at the historical bar file.
type Data struct {
	BarsPath string `yaml:"bars_path" toml:"bars_path"`
	SortBars bool   `yaml:"sort_bars" toml:"sort_bars"`
}

// Feed configures the Binance kline stream used by the live binary.
type Feed struct {
	Provider       string `yaml:"provider" toml:"provider"`
	BaseURL        string `yaml:"base_url" toml:"base_url"`
	Symbol         string `yaml:"symbol" toml:"symbol"`
	Interval       string `yaml:"interval" toml:"interval"`
	ReconnectMinMs int    `yaml:"reconnect_min_ms" toml:"reconnect_min_ms"`
	ReconnectMaxMs int    `yaml:"reconnect_max_ms" toml:"reconnect_max_ms"`
}

// Strategy selects the signal annotator applied to raw bars.
type Strategy struct {
	Mode          string  `yaml:"mode" toml:"mode"`
	Window        int     `yaml:"window" toml:"window"`
	Threshold     float64 `yaml:"threshold" toml:"threshold"`
	MinVolume     float64 `yaml:"min_volume" toml:"min_volume"`
	ATRPeriod     int     `yaml:"atr_period" toml:"atr_period"`
	StopATR       float64 `yaml:"stop_atr" toml:"stop_atr"`
	TakeProfitATR float64 `yaml:"take_profit_atr" toml:"take_profit_atr"`
}

// Export controls where run artefacts land on disk.
type Export struct {
	Dir       string `yaml:"dir" toml:"dir"`
	JSONLPath string `yaml:"jsonl_path" toml:"jsonl_path"`
}

// Postgres holds the optional run store connection.
type Postgres struct {
	DSN           string `yaml:"dsn" toml:"dsn"`
	MaxConns      int    `yaml:"max_conns" toml:"max_conns"`
	MinConns      int    `yaml:"min_conns" toml:"min_conns"`
	RunMigrations bool   `yaml:"run_migrations" toml:"run_migrations"`
}

// S3 holds the optional report bucket.
type S3 struct {
	Endpoint       string `yaml:"endpoint" toml:"endpoint"`
	Region         string `yaml:"region" toml:"region"`
	Bucket         string `yaml:"bucket" toml:"bucket"`
	Prefix         string `yaml:"prefix" toml:"prefix"`
	AccessKey      string `yaml:"access_key" toml:"access_key"`
	SecretKey      string `yaml:"secret_key" toml:"secret_key"`
	UseSSL         bool   `yaml:"use_ssl" toml:"use_ssl"`
	ForcePathStyle bool   `yaml:"force_path_style" toml:"force_path_style"`
}

// Config collects every configuration leaf.
type Config struct {
	App      App      `yaml:"app" toml:"app"`
	Engine   Engine   `yaml:"engine" toml:"engine"`
	Data     Data     `yaml:"data" toml:"data"`
	Feed     Feed     `yaml:"feed" toml:"feed"`
	Strategy Strategy `yaml:"strategy" toml:"strategy"`
	Export   Export   `yaml:"export" toml:"export"`
	Postgres Postgres `yaml:"postgres" toml:"postgres"`
	S3       S3       `yaml:"s3" toml:"s3"`
}

// Defaults returns a runnable configuration; files and environment only override it.
func Defaults() Config {
	return Config{
		App: App{Name: "tradesim", Env: "dev", MetricsAddr: ":9102", LogLevel: "info"},
		Engine: Engine{
			InitialCash:     10000,
			TransactionCost: 0.001,
			Leverage:        1,
			Slippage:        0.0005,
			RiskPerTrade:    0.02,
			DistanceMode:    string(paper.DistanceAbsolute),
			FlipPolicy:      string(paper.FlipFlatten),
		},
		Feed: Feed{
			Provider:       "binance",
			BaseURL:        "wss://stream.binance.com:9443",
			Symbol:         "BTCUSDT",
			Interval:       "1m",
			ReconnectMinMs: 500,
			ReconnectMaxMs: 10000,
		},
		Strategy: Strategy{Mode: "trend", Window: 20, Threshold: 0.002, ATRPeriod: 14, StopATR: 2, TakeProfitATR: 4},
		Export:   Export{Dir: "out"},
		Postgres: Postgres{MaxConns: 5, MinConns: 1, RunMigrations: true},
		S3:       S3{Region: "us-east-1", Prefix: "backtests", UseSSL: true},
	}
}

// Params converts the strategy section into constructor parameters.
func (s Strategy) Params() strategy.Params {
	return strategy.Params{
		Window:        s.Window,
		Threshold:     s.Threshold,
		MinVolume:     s.MinVolume,
		ATRPeriod:     s.ATRPeriod,
		StopATR:       s.StopATR,
		TakeProfitATR: s.TakeProfitATR,
	}
}

// Validate rejects settings no binary can run with.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.Strategy.Window < 0 || c.Strategy.ATRPeriod < 0 {
		return fmt.Errorf("strategy: window and atr_period must not be negative")
	}
	if c.Feed.ReconnectMaxMs > 0 && c.Feed.ReconnectMinMs > c.Feed.ReconnectMaxMs {
		return fmt.Errorf("feed: reconnect_min_ms exceeds reconnect_max_ms")
	}
	return nil
}

// Load reads a YAML or TOML file (by extension) over Defaults, then applies .env and TRADESIM_* overrides.
// The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
