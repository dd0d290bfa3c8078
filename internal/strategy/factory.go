// Package strategy annotates raw bars with a directional signal and volatility-scaled risk distances.
package strategy

import (
	"strings"

	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

// Strategy annotates bars in arrival order. Implementations keep their own rolling state.
type Strategy interface {
	OnBar(b signal.Bar) signal.Bar
	Name() string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	Window        int
	Threshold     float64
	MinVolume     float64
	ATRPeriod     int
	StopATR       float64
	TakeProfitATR float64
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) Strategy {
	atr := NewATR(params.ATRPeriod)
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "passthrough", "none":
		return NewPassthrough(atr, params.StopATR, params.TakeProfitATR)
	case "", "trend", "trend_follow", "trend_follower":
		return NewTrendFollower(params.Threshold, params.Window, params.MinVolume, atr, params.StopATR, params.TakeProfitATR)
	default:
		return NewTrendFollower(params.Threshold, params.Window, params.MinVolume, atr, params.StopATR, params.TakeProfitATR)
	}
}

// Passthrough keeps the incoming signal and only fills in missing distances from the ATR.
type Passthrough struct {
	atr      *ATR
	stopMult float64
	takeMult float64
}

// NewPassthrough wraps an ATR tracker.
func NewPassthrough(atr *ATR, stopMult, takeMult float64) *Passthrough {
	return &Passthrough{atr: atr, stopMult: stopMult, takeMult: takeMult}
}

func (p *Passthrough) Name() string { return "Passthrough" }

// OnBar updates the ATR and sets distances the bar does not already carry.
func (p *Passthrough) OnBar(b signal.Bar) signal.Bar {
	return withDistances(b, p.atr.Update(b), p.stopMult, p.takeMult)
}

func withDistances(b signal.Bar, atr, stopMult, takeMult float64) signal.Bar {
	if atr <= 0 {
		return b
	}
	if b.StopDistance == 0 && stopMult > 0 {
		b.StopDistance = atr * stopMult
	}
	if b.TakeProfitDistance == 0 && takeMult > 0 {
		b.TakeProfitDistance = atr * takeMult
	}
	return b
}
