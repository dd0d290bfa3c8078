package paper

import (
	"github.com/jurichar/high-freq-scalping-tool/internal/execution"
	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitSignal     ExitReason = "signal"
	ExitFlip       ExitReason = "flip"
)

const epsilon = 1e-9

// trigger is a pending close found by the exit monitor.
type trigger struct {
	price  float64
	reason ExitReason
}

// exitTrigger checks the bar range against the position's levels.
// The stop wins when both levels fall inside the same bar; a bar that opens beyond a level fills at the open.
func exitTrigger(p *Position, bar signal.Bar) (trigger, bool) {
	switch p.Side {
	case execution.Long:
		if p.StopLoss != nil && bar.Low <= *p.StopLoss+epsilon {
			px := *p.StopLoss
			if bar.Open < px {
				px = bar.Open
			}
			return trigger{price: px, reason: ExitStopLoss}, true
		}
		if p.TakeProfit != nil && bar.High >= *p.TakeProfit-epsilon {
			px := *p.TakeProfit
			if bar.Open > px {
				px = bar.Open
			}
			return trigger{price: px, reason: ExitTakeProfit}, true
		}
	case execution.Short:
		if p.StopLoss != nil && bar.High >= *p.StopLoss-epsilon {
			px := *p.StopLoss
			if bar.Open > px {
				px = bar.Open
			}
			return trigger{price: px, reason: ExitStopLoss}, true
		}
		if p.TakeProfit != nil && bar.Low <= *p.TakeProfit+epsilon {
			px := *p.TakeProfit
			if bar.Open < px {
				px = bar.Open
			}
			return trigger{price: px, reason: ExitTakeProfit}, true
		}
	}
	return trigger{}, false
}

// ratchetStop tightens the stop to offset away from price once price is beyond entry.
// It never loosens an existing stop and reports whether the stop moved.
func ratchetStop(p *Position, price, offset float64) bool {
	if offset <= 0 {
		return false
	}
	switch p.Side {
	case execution.Long:
		if price <= p.EntryPrice {
			return false
		}
		candidate := price - offset
		if candidate <= 0 || (p.StopLoss != nil && candidate <= *p.StopLoss) {
			return false
		}
		p.StopLoss = &candidate
		return true
	case execution.Short:
		if price >= p.EntryPrice {
			return false
		}
		candidate := price + offset
		if p.StopLoss != nil && candidate >= *p.StopLoss {
			return false
		}
		p.StopLoss = &candidate
		return true
	}
	return false
}

// trailingOffset is 2 × the volatility unit for the bar. The unit is the configured fraction of the
// bar's stop distance, or of the close when the bar carries no distance.
func trailingOffset(fraction float64, mode DistanceMode, bar signal.Bar) float64 {
	if fraction <= 0 {
		return 0
	}
	base := mode.absolute(bar.StopDistance, bar.Close)
	if base <= 0 {
		base = bar.Close
	}
	return 2 * fraction * base
}
