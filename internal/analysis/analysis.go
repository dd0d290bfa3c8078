// Package analysis derives performance statistics from a finished backtest.
package analysis

import (
	"math"

	"github.com/jurichar/high-freq-scalping-tool/internal/backtest"
	"github.com/jurichar/high-freq-scalping-tool/internal/paper"
)

// Report holds the summary statistics of one run. Ratios that are undefined for the input
// (no losing trades, flat curve) are NaN.
type Report struct {
	PercentReturn  float64 `json:"percent_return"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
	Sortino        float64 `json:"sortino"`
	Calmar         float64 `json:"calmar"`
	WinLossRatio   float64 `json:"win_loss_ratio"`
	ProfitFactor   float64 `json:"profit_factor"`
	NetPnL         float64 `json:"net_pnl"`
	Fees           float64 `json:"fees"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
}

// Evaluate computes the report for res. Returns are per-bar percentage changes of the equity curve.
func Evaluate(res backtest.Result) Report {
	values := make([]float64, len(res.Equity))
	for i, p := range res.Equity {
		values[i] = p.Value
	}
	final := res.FinalEquity
	if len(values) == 0 {
		final = res.FinalCash
	}

	r := Report{
		PercentReturn:  PercentReturn(res.InitialCash, final),
		MaxDrawdownPct: MaxDrawdown(values),
	}
	returns := PctChange(values)
	r.Sharpe = Sharpe(returns, 0)
	r.Sortino = Sortino(returns, 0)
	r.Calmar = Calmar(r.PercentReturn, r.MaxDrawdownPct)

	var grossProfit, grossLoss float64
	for _, tx := range res.Transactions {
		r.Fees += tx.Fee
		if tx.Action != paper.ActionClose {
			continue
		}
		r.Trades++
		r.NetPnL += tx.PnL
		switch {
		case tx.PnL > 0:
			r.Wins++
			grossProfit += tx.PnL
		case tx.PnL < 0:
			r.Losses++
			grossLoss -= tx.PnL
		}
	}
	r.NetPnL -= r.Fees
	r.WinLossRatio = ratio(float64(r.Wins), float64(r.Losses))
	r.ProfitFactor = ratio(grossProfit, grossLoss)
	return r
}

// PercentReturn is the change from initial to final as a percentage of initial.
func PercentReturn(initial, final float64) float64 {
	if initial == 0 {
		return math.NaN()
	}
	return (final - initial) / initial * 100
}

// MaxDrawdown is the deepest fall from a running peak, in percent (zero or negative).
func MaxDrawdown(values []float64) float64 {
	var peak, worst float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (v - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

// PctChange returns the simple returns between consecutive values, skipping zero bases.
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

// Sharpe is the mean excess return over its sample standard deviation.
func Sharpe(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, r := range returns {
		mean += r - riskFree
	}
	mean /= float64(len(returns))
	var ss float64
	for _, r := range returns {
		d := r - riskFree - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	return ratio(mean, std)
}

// Sortino divides the mean excess return by the downside deviation.
func Sortino(returns []float64, riskFree float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	var mean, downside float64
	var n int
	for _, r := range returns {
		mean += r
		if r < riskFree {
			d := r - riskFree
			downside += d * d
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	mean = mean/float64(len(returns)) - riskFree
	return ratio(mean, math.Sqrt(downside/float64(n)))
}

// Calmar relates percentage return to the magnitude of the max drawdown.
func Calmar(percentReturn, maxDrawdownPct float64) float64 {
	return ratio(percentReturn, math.Abs(maxDrawdownPct))
}

func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) {
		return math.NaN()
	}
	return num / den
}
