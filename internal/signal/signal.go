// Package signal standardizes the per-bar payload shared between data ingestion, strategy annotation and the engine.
package signal

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedBar marks a bar the engine cannot process without corrupting the equity curve.
var ErrMalformedBar = errors.New("malformed bar")

// Signal is the directional instruction attached to a bar by the strategy layer.
type Signal int

const (
	// ExitShort closes an open short without opening anything.
	ExitShort Signal = -2
	// EnterShort opens a short (flattening a long first under the default policy).
	EnterShort Signal = -1
	// Hold opens nothing; only exit checks apply.
	Hold Signal = 0
	// EnterLong opens a long (flattening a short first under the default policy).
	EnterLong Signal = 1
	// ExitLong closes an open long without opening anything.
	ExitLong Signal = 2
)

// Valid reports whether s is one of the recognised signal values.
func (s Signal) Valid() bool {
	return s >= ExitShort && s <= ExitLong
}

func (s Signal) String() string {
	switch s {
	case ExitShort:
		return "exit_short"
	case EnterShort:
		return "enter_short"
	case Hold:
		return "hold"
	case EnterLong:
		return "enter_long"
	case ExitLong:
		return "exit_long"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Bar models one time step of market data plus the strategy's signal and risk distances.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	Signal Signal
	// StopDistance and TakeProfitDistance are measured from the entry price; zero disables the level.
	StopDistance       float64
	TakeProfitDistance float64
}

// Validate checks the fields the engine depends on.
// Open, High and Low may be zero when a source only provides closes; they are then backfilled from Close.
func (b *Bar) Validate() error {
	if b.Time.IsZero() {
		return fmt.Errorf("%w: missing time", ErrMalformedBar)
	}
	if !finitePositive(b.Close) {
		return fmt.Errorf("%w: close %v at %s", ErrMalformedBar, b.Close, b.Time.Format(time.RFC3339))
	}
	if b.Open == 0 {
		b.Open = b.Close
	}
	if b.High == 0 {
		b.High = math.Max(b.Open, b.Close)
	}
	if b.Low == 0 {
		b.Low = math.Min(b.Open, b.Close)
	}
	for _, field := range []struct {
		name string
		v    float64
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}} {
		if !finitePositive(field.v) {
			return fmt.Errorf("%w: %s %v at %s", ErrMalformedBar, field.name, field.v, b.Time.Format(time.RFC3339))
		}
	}
	if b.Low > b.High {
		return fmt.Errorf("%w: low %.8g above high %.8g at %s", ErrMalformedBar, b.Low, b.High, b.Time.Format(time.RFC3339))
	}
	if !b.Signal.Valid() {
		return fmt.Errorf("%w: %s at %s", ErrMalformedBar, b.Signal, b.Time.Format(time.RFC3339))
	}
	if b.StopDistance < 0 || b.TakeProfitDistance < 0 || math.IsNaN(b.StopDistance) || math.IsNaN(b.TakeProfitDistance) {
		return fmt.Errorf("%w: negative risk distance at %s", ErrMalformedBar, b.Time.Format(time.RFC3339))
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
