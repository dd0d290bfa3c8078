package config

import (
	"os"
	"strconv"
)

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.App.Env, "TRADESIM_ENV")
	setStr(&cfg.App.MetricsAddr, "TRADESIM_METRICS_ADDR")
	setStr(&cfg.App.LogLevel, "TRADESIM_LOG_LEVEL")
	setBool(&cfg.App.LogPretty, "TRADESIM_LOG_PRETTY")

	setFloat64(&cfg.Engine.InitialCash, "TRADESIM_ENGINE_INITIAL_CASH")
	setFloat64(&cfg.Engine.TransactionCost, "TRADESIM_ENGINE_TRANSACTION_COST_FRACTION")
	setFloat64(&cfg.Engine.Leverage, "TRADESIM_ENGINE_LEVERAGE")
	setFloat64(&cfg.Engine.Slippage, "TRADESIM_ENGINE_SLIPPAGE_FRACTION")
	setFloat64(&cfg.Engine.RiskPerTrade, "TRADESIM_ENGINE_RISK_PER_TRADE_FRACTION")
	setFloat64(&cfg.Engine.TrailingStopFraction, "TRADESIM_ENGINE_TRAILING_STOP_FRACTION")
	setStr(&cfg.Engine.FlipPolicy, "TRADESIM_ENGINE_FLIP_POLICY")

	setStr(&cfg.Data.BarsPath, "TRADESIM_DATA_BARS_PATH")
	setStr(&cfg.Feed.Provider, "TRADESIM_FEED_PROVIDER")
	setStr(&cfg.Feed.Symbol, "TRADESIM_FEED_SYMBOL")
	setStr(&cfg.Feed.Interval, "TRADESIM_FEED_INTERVAL")
	setStr(&cfg.Export.Dir, "TRADESIM_EXPORT_DIR")

	setStr(&cfg.Postgres.DSN, "TRADESIM_POSTGRES_DSN")
	setStr(&cfg.S3.Endpoint, "TRADESIM_S3_ENDPOINT")
	setStr(&cfg.S3.Bucket, "TRADESIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADESIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADESIM_S3_SECRET_KEY")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
