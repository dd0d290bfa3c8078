package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jurichar/high-freq-scalping-tool/internal/backtest"
	"github.com/jurichar/high-freq-scalping-tool/internal/config"
	"github.com/jurichar/high-freq-scalping-tool/internal/feed"
	"github.com/jurichar/high-freq-scalping-tool/internal/metrics"
	"github.com/jurichar/high-freq-scalping-tool/internal/paper"
	sig "github.com/jurichar/high-freq-scalping-tool/internal/signal"
	"github.com/jurichar/high-freq-scalping-tool/internal/strategy"
	"github.com/jurichar/high-freq-scalping-tool/internal/util"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:          "live",
		Short:        "Paper-trade closed klines from a live feed",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "YAML or TOML config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := util.NewLoggerTo(os.Stdout, cfg.App.LogLevel, cfg.App.LogPretty)

	srv := metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	jsonlPath := cfg.Export.JSONLPath
	if jsonlPath == "" {
		jsonlPath = filepath.Join(cfg.Export.Dir, "live_transactions.jsonl")
	}
	recorder, err := paper.NewJSONLRecorder(jsonlPath)
	if err != nil {
		return fmt.Errorf("open jsonl recorder: %w", err)
	}
	defer recorder.Close()

	engine, err := backtest.NewEngine(cfg.Engine.Account(),
		backtest.WithLogger(log),
		backtest.WithRecorder(recorder),
		backtest.WithSource(cfg.Feed.Provider),
	)
	if err != nil {
		return err
	}
	strat := strategy.Build(cfg.Strategy.Mode, cfg.Strategy.Params())
	src := feed.NewFeed(cfg.Feed.Provider, cfg.Feed.Symbol, cfg.Feed.Interval, log,
		feed.WithBaseURL(cfg.Feed.BaseURL),
		feed.WithBackoff(
			time.Duration(cfg.Feed.ReconnectMinMs)*time.Millisecond,
			time.Duration(cfg.Feed.ReconnectMaxMs)*time.Millisecond,
		),
	)

	g, ctx := errgroup.WithContext(ctx)
	bars := make(chan sig.Bar, 256)

	g.Go(func() error {
		return src.Run(ctx, bars)
	})
	var mark float64
	g.Go(func() error {
		return consume(ctx, log, engine, strat, bars, &mark)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info().Str("strategy", strat.Name()).Str("symbol", cfg.Feed.Symbol).Msg("live engine started")
	err = g.Wait()

	snap := engine.Account().Snapshot(mark)
	log.Info().
		Float64("cash", snap.Cash).
		Float64("equity", snap.Equity).
		Float64("realized_pnl", snap.RealizedPnL).
		Int("open_positions", len(snap.Positions)).
		Msg("shutting down")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// consume is the only goroutine touching the engine. mark holds the last accepted close.
func consume(ctx context.Context, log zerolog.Logger, engine *backtest.Engine, strat strategy.Strategy, bars <-chan sig.Bar, mark *float64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar := <-bars:
			annotated := strat.OnBar(bar)
			point, err := engine.Step(annotated)
			if errors.Is(err, sig.ErrMalformedBar) {
				log.Warn().Err(err).Msg("skipping malformed bar")
				continue
			}
			if err != nil {
				return err
			}
			*mark = annotated.Close
			log.Debug().
				Time("bar", point.Time).
				Str("signal", annotated.Signal.String()).
				Float64("equity", point.Value).
				Msg("bar processed")
		}
	}
}
