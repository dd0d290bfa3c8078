package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jurichar/high-freq-scalping-tool/internal/analysis"
	"github.com/jurichar/high-freq-scalping-tool/internal/backtest"
	"github.com/jurichar/high-freq-scalping-tool/internal/paper"
)

// RunSummary is one row of backtest_runs.
type RunSummary struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Label       string
	Bars        int
	InitialCash float64
	FinalCash   float64
	FinalEquity float64
	RealizedPnL float64
	Rejections  int
}

// RunStore writes complete runs and lists recent ones.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

const insertRun = `
	INSERT INTO backtest_runs (
		id, label, bars, initial_cash, final_cash, final_equity, realized_pnl, rejections, config, report
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertTransaction = `
	INSERT INTO backtest_transactions (
		run_id, seq, ts, action, side, price, quantity, pnl, fee, position_id, reason
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const insertEquity = `INSERT INTO backtest_equity (run_id, seq, ts, value) VALUES ($1, $2, $3, $4)`

// SaveRun stores the run header, ledger and equity curve in one transaction and returns the new run id.
func (s *RunStore) SaveRun(ctx context.Context, label string, cfg paper.Config, res backtest.Result, rep analysis.Report) (uuid.UUID, error) {
	id := uuid.New()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("postgres: encode config: %w", err)
	}
	repJSON, err := json.Marshal(finiteReport(rep))
	if err != nil {
		return uuid.Nil, fmt.Errorf("postgres: encode report: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("postgres: begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertRun,
		id, label, res.Bars, res.InitialCash, res.FinalCash, res.FinalEquity, res.RealizedPnL, res.Rejections, cfgJSON, repJSON,
	); err != nil {
		return uuid.Nil, fmt.Errorf("postgres: insert run: %w", err)
	}

	batch := buildBatch(id, res)
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return uuid.Nil, fmt.Errorf("postgres: insert run row %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return uuid.Nil, fmt.Errorf("postgres: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("postgres: commit run: %w", err)
	}
	return id, nil
}

func buildBatch(id uuid.UUID, res backtest.Result) *pgx.Batch {
	batch := &pgx.Batch{}
	for i, t := range res.Transactions {
		batch.Queue(insertTransaction,
			id, i, t.Time, string(t.Action), t.Side.String(), t.Price, t.Quantity, t.PnL, t.Fee, int64(t.PositionID), string(t.Reason),
		)
	}
	for i, p := range res.Equity {
		batch.Queue(insertEquity, id, i, p.Time, p.Value)
	}
	return batch
}

// finiteReport replaces NaN ratios with zero; JSON has no NaN.
func finiteReport(rep analysis.Report) analysis.Report {
	for _, v := range []*float64{
		&rep.PercentReturn, &rep.MaxDrawdownPct, &rep.Sharpe, &rep.Sortino,
		&rep.Calmar, &rep.WinLossRatio, &rep.ProfitFactor,
	} {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}
	return rep
}

// RecentRuns returns up to limit runs, newest first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, label, bars, initial_cash, final_cash, final_equity, realized_pnl, rejections
		FROM backtest_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Label, &r.Bars, &r.InitialCash, &r.FinalCash, &r.FinalEquity, &r.RealizedPnL, &r.Rejections); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
