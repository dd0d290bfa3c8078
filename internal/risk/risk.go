// Package risk converts a per-trade risk budget into a position quantity.
package risk

import "math"

// Limits caps the notional a single trade may carry. Zero disables the cap.
type Limits struct {
	MaxNotionalPerTrade float64
}

// Allow reports whether notional fits under the per-trade cap.
func (l Limits) Allow(notional float64) bool {
	return l.MaxNotionalPerTrade <= 0 || notional <= l.MaxNotionalPerTrade
}

// Basis records which rule produced a quantity.
type Basis string

const (
	// BasisRisk sizes so that hitting the stop loses exactly the risk budget.
	BasisRisk Basis = "risk"
	// BasisEquity falls back to deploying the whole equity once risk sizing is unusable or oversized.
	BasisEquity Basis = "equity"
	// BasisCapped means the per-trade notional cap trimmed the quantity.
	BasisCapped Basis = "capped"
	// BasisNone means nothing can be traded (no equity or no price).
	BasisNone Basis = "none"
)

// Sizer computes trade quantities from current equity.
type Sizer struct {
	RiskPerTrade float64
	Limits       Limits
}

// NewSizer builds a Sizer for the given risk fraction and notional cap.
func NewSizer(riskPerTrade, maxNotionalPerTrade float64) Sizer {
	return Sizer{RiskPerTrade: riskPerTrade, Limits: Limits{MaxNotionalPerTrade: maxNotionalPerTrade}}
}

// Quantity returns the asset quantity for an entry at price given marked-to-market equity and the
// stop distance expressed as a fraction of price.
//
// quantity = (equity*risk) / (stopFraction*price). When the stop distance is unusable (zero,
// negative, NaN) or the risk-sized notional would exceed equity, the size falls back to equity/price.
func (s Sizer) Quantity(price, equity, stopFraction float64) (float64, Basis) {
	if price <= 0 || equity <= 0 || math.IsNaN(price) || math.IsNaN(equity) {
		return 0, BasisNone
	}
	fallback := equity / price

	qty, basis := fallback, BasisEquity
	if stopFraction > 0 && !math.IsInf(stopFraction, 0) {
		riskAmount := equity * s.RiskPerTrade
		dollarStop := stopFraction * price
		sized := riskAmount / dollarStop
		if sized*price <= equity {
			qty, basis = sized, BasisRisk
		}
	}

	if !s.Limits.Allow(qty * price) {
		qty, basis = s.Limits.MaxNotionalPerTrade/price, BasisCapped
	}
	if qty <= 0 || math.IsNaN(qty) {
		return 0, BasisNone
	}
	return qty, basis
}
