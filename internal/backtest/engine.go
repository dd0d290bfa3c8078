// Package backtest drives an account through bars in time order and records the equity curve.
package backtest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jurichar/high-freq-scalping-tool/internal/metrics"
	"github.com/jurichar/high-freq-scalping-tool/internal/paper"
	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

// EquityPoint is the marked-to-market account value after one bar.
type EquityPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Result is everything a finished run produced.
type Result struct {
	Transactions  []paper.Transaction
	Equity        []EquityPoint
	OpenPositions []paper.Position
	InitialCash   float64
	FinalCash     float64
	FinalEquity   float64
	RealizedPnL   float64
	Bars          int
	Rejections    int
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger attaches a logger for per-event output. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRecorder mirrors every accepted transaction to r.
func WithRecorder(r paper.Recorder) Option {
	return func(e *Engine) { e.accountOpts = append(e.accountOpts, paper.WithRecorder(r)) }
}

// WithSource labels the bars_total metric.
func WithSource(source string) Option {
	return func(e *Engine) {
		if source != "" {
			e.source = source
		}
	}
}

// WithSort makes Run stable-sort a copy of the bars by time before processing.
func WithSort() Option {
	return func(e *Engine) { e.sortBars = true }
}

// Engine feeds bars to an account one at a time. It is not safe for concurrent Step calls.
type Engine struct {
	account     *paper.Account
	accountOpts []paper.Option
	log         zerolog.Logger
	source      string
	sortBars    bool

	equity     []EquityPoint
	last       time.Time
	bars       int
	rejections int
}

// NewEngine builds an engine around a fresh account.
func NewEngine(cfg paper.Config, opts ...Option) (*Engine, error) {
	e := &Engine{log: zerolog.Nop(), source: "backtest"}
	for _, opt := range opts {
		opt(e)
	}
	account, err := paper.NewAccount(cfg, e.accountOpts...)
	if err != nil {
		return nil, err
	}
	e.account = account
	return e, nil
}

// Account exposes the underlying account for snapshots.
func (e *Engine) Account() *paper.Account { return e.account }

// Step processes one bar: exits first, then the signal, then the equity mark at the close.
// A malformed or out-of-order bar is rejected before any state changes.
func (e *Engine) Step(bar signal.Bar) (EquityPoint, error) {
	if err := bar.Validate(); err != nil {
		return EquityPoint{}, err
	}
	if e.bars > 0 && bar.Time.Before(e.last) {
		return EquityPoint{}, fmt.Errorf("bar at %s precedes %s: %w", bar.Time.Format(time.RFC3339), e.last.Format(time.RFC3339), signal.ErrMalformedBar)
	}

	exits, err := e.account.CheckExits(bar)
	e.observe(exits)
	if err != nil {
		return EquityPoint{}, fmt.Errorf("check exits at %s: %w", bar.Time.Format(time.RFC3339), err)
	}
	entries, err := e.account.HandleSignal(bar)
	e.observe(entries)
	if err != nil {
		return EquityPoint{}, fmt.Errorf("handle signal at %s: %w", bar.Time.Format(time.RFC3339), err)
	}

	point := EquityPoint{Time: bar.Time, Value: e.account.Equity(bar.Close)}
	e.equity = append(e.equity, point)
	e.last = bar.Time
	e.bars++

	metrics.BarsTotal.WithLabelValues(e.source).Inc()
	metrics.EquityValue.Set(point.Value)
	return point, nil
}

func (e *Engine) observe(events []paper.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case paper.EventOpened:
			metrics.TradesTotal.WithLabelValues(string(paper.ActionOpen), ev.Side.String()).Inc()
			e.log.Info().
				Time("bar", ev.Time).
				Str("side", ev.Side.String()).
				Uint64("position", uint64(ev.Position.ID)).
				Float64("price", ev.Transaction.Price).
				Float64("qty", ev.Transaction.Quantity).
				Str("sizing", string(ev.Sizing)).
				Msg("position opened")
		case paper.EventClosed:
			metrics.TradesTotal.WithLabelValues(string(paper.ActionClose), ev.Side.String()).Inc()
			e.log.Info().
				Time("bar", ev.Time).
				Str("side", ev.Side.String()).
				Uint64("position", uint64(ev.Position.ID)).
				Float64("price", ev.Transaction.Price).
				Float64("pnl", ev.Transaction.PnL).
				Str("reason", string(ev.Transaction.Reason)).
				Msg("position closed")
		case paper.EventRejected:
			e.rejections++
			metrics.RejectionsTotal.WithLabelValues(rejectionReason(ev.Err)).Inc()
			e.log.Warn().
				Time("bar", ev.Time).
				Str("side", ev.Side.String()).
				Err(ev.Err).
				Msg("entry rejected")
		case paper.EventStopMoved:
			stop := 0.0
			if ev.Position.StopLoss != nil {
				stop = *ev.Position.StopLoss
			}
			e.log.Debug().
				Uint64("position", uint64(ev.Position.ID)).
				Float64("stop", stop).
				Msg("trailing stop moved")
		}
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, paper.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, paper.ErrNoSize):
		return "no_size"
	case errors.Is(err, paper.ErrOppositeOpen):
		return "opposite_open"
	default:
		return "other"
	}
}

// Equity returns a copy of the curve so far.
func (e *Engine) Equity() []EquityPoint {
	out := make([]EquityPoint, len(e.equity))
	copy(out, e.equity)
	return out
}

// Result summarises the run so far. Open positions are marked at the last bar's equity point.
func (e *Engine) Result() Result {
	cfg := e.account.Config()
	res := Result{
		Transactions:  e.account.Transactions(),
		Equity:        e.Equity(),
		OpenPositions: e.account.OpenPositions(),
		InitialCash:   cfg.InitialCash,
		FinalCash:     e.account.Cash(),
		RealizedPnL:   e.account.RealizedPnL(),
		Bars:          e.bars,
		Rejections:    e.rejections,
	}
	res.FinalEquity = res.FinalCash
	if n := len(res.Equity); n > 0 {
		res.FinalEquity = res.Equity[n-1].Value
	}
	return res
}

// Run processes bars in order with a fresh account and returns the result.
// The first malformed bar aborts the run; the partial result up to that bar is returned with the error.
func Run(bars []signal.Bar, cfg paper.Config, opts ...Option) (Result, error) {
	engine, err := NewEngine(cfg, opts...)
	if err != nil {
		return Result{}, err
	}
	if engine.sortBars {
		sorted := make([]signal.Bar, len(bars))
		copy(sorted, bars)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
		bars = sorted
	}
	for i, bar := range bars {
		if _, err := engine.Step(bar); err != nil {
			return engine.Result(), fmt.Errorf("bar %d: %w", i, err)
		}
	}
	res := engine.Result()
	engine.log.Info().
		Int("bars", res.Bars).
		Int("transactions", len(res.Transactions)).
		Float64("final_cash", res.FinalCash).
		Float64("final_equity", res.FinalEquity).
		Msg("backtest finished")
	return res, nil
}
