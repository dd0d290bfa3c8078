package integration

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jurichar/high-freq-scalping-tool/internal/analysis"
	"github.com/jurichar/high-freq-scalping-tool/internal/backtest"
	"github.com/jurichar/high-freq-scalping-tool/internal/config"
	"github.com/jurichar/high-freq-scalping-tool/internal/feed"
	"github.com/jurichar/high-freq-scalping-tool/internal/paper"
	"github.com/jurichar/high-freq-scalping-tool/internal/report"
	sig "github.com/jurichar/high-freq-scalping-tool/internal/signal"
	"github.com/jurichar/high-freq-scalping-tool/internal/strategy"
)

func TestStubFeedThroughEngineProducesTrades(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	barsBefore := barsCounted(t, feed.ProviderStub)

	src := feed.NewFeed(feed.ProviderStub, "BTCUSDT", "1m", zerolog.Nop(), feed.WithStubInterval(time.Millisecond))
	bars := make(chan sig.Bar, 8)
	go func() {
		_ = src.Run(ctx, bars)
	}()

	cfg := config.Defaults()
	cfg.Strategy.Window = 5
	cfg.Strategy.Threshold = 0.001
	cfg.Strategy.ATRPeriod = 3
	strat := strategy.Build(cfg.Strategy.Mode, cfg.Strategy.Params())

	dir := t.TempDir()
	jsonlPath := filepath.Join(dir, "transactions.jsonl")
	recorder, err := paper.NewJSONLRecorder(jsonlPath)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}

	var buf bytes.Buffer
	engine, err := backtest.NewEngine(cfg.Engine.Account(),
		backtest.WithLogger(zerolog.New(&buf)),
		backtest.WithRecorder(recorder),
		backtest.WithSource(feed.ProviderStub),
	)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	for i := 0; i < 30; i++ {
		select {
		case <-ctx.Done():
			t.Fatalf("timed out after %d bars", i)
		case bar := <-bars:
			if _, err := engine.Step(strat.OnBar(bar)); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		}
	}
	cancel()
	if err := recorder.Close(); err != nil {
		t.Fatalf("close recorder: %v", err)
	}

	// The feed may have buffered more bars; only the ones the engine stepped count.
	if got := barsCounted(t, feed.ProviderStub) - barsBefore; got != 30 {
		t.Fatalf("expected bars_total to grow by 30, got %v", got)
	}

	res := engine.Result()
	if res.Bars != 30 || len(res.Equity) != 30 {
		t.Fatalf("expected 30 bars and equity points, got %d/%d", res.Bars, len(res.Equity))
	}
	opens := 0
	for _, tx := range res.Transactions {
		if tx.Action == paper.ActionOpen {
			opens++
		}
	}
	if opens == 0 {
		t.Fatalf("expected at least one entry on a rising stub feed, got %+v", res.Transactions)
	}
	if res.FinalCash < 0 {
		t.Fatalf("cash went negative: %v", res.FinalCash)
	}
	if !strings.Contains(buf.String(), "position opened") {
		t.Fatalf("expected open log, got %s", buf.String())
	}

	file, err := os.Open(jsonlPath)
	if err != nil {
		t.Fatalf("open jsonl: %v", err)
	}
	defer file.Close()
	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	if lines != len(res.Transactions) {
		t.Fatalf("jsonl has %d lines, ledger has %d transactions", lines, len(res.Transactions))
	}

	paths, err := report.WriteDir(filepath.Join(dir, "out"), res)
	if err != nil {
		t.Fatalf("write reports: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected two report files, got %v", paths)
	}

	rep := analysis.Evaluate(res)
	if rep.Trades > opens {
		t.Fatalf("unexpected trade count %d for %d opens", rep.Trades, opens)
	}
}

func barsCounted(t *testing.T, source string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "bars_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "source" && label.GetValue() == source {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
