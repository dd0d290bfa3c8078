package strategy

import (
	"math"
	"sync"

	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

// TrendFollower goes long or short when the close has moved more than threshold over the last window bars,
// provided enough notional traded in that window.
type TrendFollower struct {
	threshold float64
	window    int
	minVolume float64
	atr       *ATR
	stopMult  float64
	takeMult  float64

	mu     sync.Mutex
	closes []float64
	volume []float64
}

// NewTrendFollower builds a trend-following annotator using percent change and volume filters.
func NewTrendFollower(threshold float64, window int, minVolume float64, atr *ATR, stopMult, takeMult float64) *TrendFollower {
	if threshold <= 0 {
		threshold = 0.002
	}
	if window <= 1 {
		window = 20
	}
	if atr == nil {
		atr = NewATR(0)
	}
	return &TrendFollower{
		threshold: threshold,
		window:    window,
		minVolume: math.Max(0, minVolume),
		atr:       atr,
		stopMult:  stopMult,
		takeMult:  takeMult,
	}
}

// Name returns the configured identifier for logging.
func (t *TrendFollower) Name() string { return "TrendFollower" }

// OnBar replaces the bar's signal with the trend decision and attaches ATR distances once warmed up.
func (t *TrendFollower) OnBar(b signal.Bar) signal.Bar {
	atr := t.atr.Update(b)
	b.Signal = signal.Hold

	if b.Close <= 0 {
		return b
	}

	t.mu.Lock()
	t.closes = append(t.closes, b.Close)
	t.volume = append(t.volume, math.Abs(b.Close*b.Volume))
	if len(t.closes) > t.window {
		t.closes = t.closes[len(t.closes)-t.window:]
		t.volume = t.volume[len(t.volume)-t.window:]
	}
	full := len(t.closes) == t.window
	oldest := t.closes[0]
	var notional float64
	for _, v := range t.volume {
		notional += v
	}
	t.mu.Unlock()

	if !full || oldest <= 0 {
		return withDistances(b, atr, t.stopMult, t.takeMult)
	}
	change := (b.Close - oldest) / oldest
	switch {
	case t.minVolume > 0 && notional < t.minVolume:
	case change >= t.threshold:
		b.Signal = signal.EnterLong
	case change <= -t.threshold:
		b.Signal = signal.EnterShort
	}
	return withDistances(b, atr, t.stopMult, t.takeMult)
}
