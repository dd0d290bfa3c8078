package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jurichar/high-freq-scalping-tool/internal/analysis"
	"github.com/jurichar/high-freq-scalping-tool/internal/backtest"
	s3blob "github.com/jurichar/high-freq-scalping-tool/internal/blob/s3"
	"github.com/jurichar/high-freq-scalping-tool/internal/config"
	"github.com/jurichar/high-freq-scalping-tool/internal/feed"
	"github.com/jurichar/high-freq-scalping-tool/internal/paper"
	"github.com/jurichar/high-freq-scalping-tool/internal/report"
	sig "github.com/jurichar/high-freq-scalping-tool/internal/signal"
	"github.com/jurichar/high-freq-scalping-tool/internal/store/postgres"
	"github.com/jurichar/high-freq-scalping-tool/internal/strategy"
	"github.com/jurichar/high-freq-scalping-tool/internal/util"
)

type runOptions struct {
	configPath string
	barsPath   string
	outDir     string
	label      string
	annotate   string
	sortBars   bool
	toPostgres bool
	toS3       bool
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest over a CSV bar file",
		Long: `Load bars from CSV, run them through the account, and write
transactions.csv, equity.csv and transactions.jsonl to the output directory.

Example:
  backtest run --config config.yaml --bars data/btc_1h.csv --out results
  backtest run --bars data/btc_1h.csv --strategy trend --postgres --s3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runBacktest(ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML or TOML config file (defaults when empty)")
	cmd.Flags().StringVarP(&opts.barsPath, "bars", "b", "", "CSV bar file (overrides data.bars_path)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Output directory (overrides export.dir)")
	cmd.Flags().StringVar(&opts.label, "label", "", "Free-form label stored with the run")
	cmd.Flags().StringVar(&opts.annotate, "strategy", "", "Recompute signals with this strategy mode instead of using the file's")
	cmd.Flags().BoolVar(&opts.sortBars, "sort", false, "Stable-sort bars by time before running")
	cmd.Flags().BoolVar(&opts.toPostgres, "postgres", false, "Persist the run to PostgreSQL")
	cmd.Flags().BoolVar(&opts.toS3, "s3", false, "Upload the output files to S3")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Defaults()
		return &cfg, nil
	}
	return config.Load(path)
}

func runBacktest(ctx context.Context, opts runOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := util.NewLoggerTo(os.Stderr, cfg.App.LogLevel, cfg.App.LogPretty)

	barsPath := firstNonEmpty(opts.barsPath, cfg.Data.BarsPath)
	if barsPath == "" {
		return fmt.Errorf("no bar file: pass --bars or set data.bars_path")
	}
	outDir := firstNonEmpty(opts.outDir, cfg.Export.Dir, "out")

	bars, err := feed.LoadCSV(barsPath)
	if err != nil {
		return err
	}
	if opts.annotate != "" {
		bars = annotate(bars, strategy.Build(opts.annotate, cfg.Strategy.Params()))
	}
	log.Info().Str("bars_path", barsPath).Int("bars", len(bars)).Msg("bars loaded")

	jsonlPath := firstNonEmpty(cfg.Export.JSONLPath, filepath.Join(outDir, "transactions.jsonl"))
	recorder, err := paper.NewJSONLRecorder(jsonlPath)
	if err != nil {
		return fmt.Errorf("open jsonl recorder: %w", err)
	}
	defer recorder.Close()

	accountCfg := cfg.Engine.Account()
	runOpts := []backtest.Option{
		backtest.WithLogger(log),
		backtest.WithRecorder(recorder),
		backtest.WithSource("csv"),
	}
	if opts.sortBars || cfg.Data.SortBars {
		runOpts = append(runOpts, backtest.WithSort())
	}
	res, err := backtest.Run(bars, accountCfg, runOpts...)
	if err != nil {
		return err
	}
	if err := recorder.Close(); err != nil {
		return fmt.Errorf("close jsonl recorder: %w", err)
	}

	rep := analysis.Evaluate(res)
	logReport(log, rep)

	files, err := report.WriteDir(outDir, res)
	if err != nil {
		return err
	}
	files = append(files, jsonlPath)
	log.Info().Strs("files", files).Msg("reports written")

	runID := uuid.New()
	if opts.toPostgres {
		id, err := saveToPostgres(ctx, cfg.Postgres, opts.label, accountCfg, res, rep)
		if err != nil {
			return err
		}
		runID = id
		log.Info().Str("run_id", runID.String()).Msg("run stored in postgres")
	}
	if opts.toS3 {
		keys, err := uploadToS3(ctx, cfg.S3, runID, files)
		if err != nil {
			return err
		}
		log.Info().Str("run_id", runID.String()).Strs("keys", keys).Msg("reports uploaded")
	}
	return nil
}

func annotate(bars []sig.Bar, strat strategy.Strategy) []sig.Bar {
	out := make([]sig.Bar, len(bars))
	for i, b := range bars {
		out[i] = strat.OnBar(b)
	}
	return out
}

func logReport(log zerolog.Logger, rep analysis.Report) {
	log.Info().
		Float64("return_pct", rep.PercentReturn).
		Float64("max_drawdown_pct", rep.MaxDrawdownPct).
		Float64("sharpe", rep.Sharpe).
		Float64("sortino", rep.Sortino).
		Float64("calmar", rep.Calmar).
		Float64("win_loss", rep.WinLossRatio).
		Float64("profit_factor", rep.ProfitFactor).
		Float64("net_pnl", rep.NetPnL).
		Int("trades", rep.Trades).
		Msg("performance")
}

func saveToPostgres(ctx context.Context, pc config.Postgres, label string, cfg paper.Config, res backtest.Result, rep analysis.Report) (uuid.UUID, error) {
	client, err := postgres.New(ctx, postgres.ClientConfig{DSN: pc.DSN, MaxConns: pc.MaxConns, MinConns: pc.MinConns})
	if err != nil {
		return uuid.Nil, err
	}
	defer client.Close()
	if pc.RunMigrations {
		if err := client.RunMigrations(ctx); err != nil {
			return uuid.Nil, err
		}
	}
	return postgres.NewRunStore(client.Pool()).SaveRun(ctx, label, cfg, res, rep)
}

func uploadToS3(ctx context.Context, sc config.S3, runID uuid.UUID, files []string) ([]string, error) {
	client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       sc.Endpoint,
		Region:         sc.Region,
		Bucket:         sc.Bucket,
		AccessKey:      sc.AccessKey,
		SecretKey:      sc.SecretKey,
		UseSSL:         sc.UseSSL,
		ForcePathStyle: sc.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return s3blob.NewRunUploader(client, sc.Prefix).UploadFiles(ctx, runID, files)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
