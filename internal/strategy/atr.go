package strategy

import (
	"math"
	"sync"

	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

// ATR tracks Wilder's average true range. It seeds with the simple mean of the first period true ranges.
type ATR struct {
	period int

	mu        sync.Mutex
	prevClose float64
	seed      []float64
	value     float64
	ready     bool
}

// NewATR builds a tracker; non-positive periods default to 14.
func NewATR(period int) *ATR {
	if period <= 0 {
		period = 14
	}
	return &ATR{period: period}
}

// Update folds b into the average and returns the current ATR, or 0 while warming up.
func (a *ATR) Update(b signal.Bar) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	high, low := b.High, b.Low
	if high == 0 && low == 0 {
		high, low = b.Close, b.Close
	}
	tr := high - low
	if a.prevClose > 0 {
		tr = math.Max(tr, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	}
	a.prevClose = b.Close

	if !a.ready {
		a.seed = append(a.seed, tr)
		if len(a.seed) < a.period {
			return 0
		}
		var sum float64
		for _, v := range a.seed {
			sum += v
		}
		a.value = sum / float64(a.period)
		a.seed = nil
		a.ready = true
		return a.value
	}
	n := float64(a.period)
	a.value = (a.value*(n-1) + tr) / n
	return a.value
}

// Value returns the latest ATR without updating it.
func (a *ATR) Value() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}
