package risk

import (
	"math"
	"testing"
)

func TestAllow(t *testing.T) {
	limits := Limits{MaxNotionalPerTrade: 50}
	if !limits.Allow(49.9) {
		t.Fatalf("expected notional under limit to pass")
	}
	if limits.Allow(50.1) {
		t.Fatalf("expected notional above limit to fail")
	}
	if !(Limits{}).Allow(1e12) {
		t.Fatalf("expected zero limit to disable the cap")
	}
}

func TestQuantityRiskSized(t *testing.T) {
	sizer := NewSizer(0.02, 0)
	price := 8611.5
	stopFraction := (9156.5 - 8611.5) / price

	qty, basis := sizer.Quantity(price, 3000, stopFraction)
	if basis != BasisRisk {
		t.Fatalf("expected risk basis, got %s", basis)
	}
	notional := qty * price
	if math.Abs(notional-948.055) > 0.01 {
		t.Fatalf("expected notional ~948.06, got %.4f", notional)
	}
}

func TestQuantityFallsBackToEquity(t *testing.T) {
	sizer := NewSizer(0.02, 0)

	// A stop 0.1% away would need 20x equity to risk 2%.
	qty, basis := sizer.Quantity(100, 1000, 0.001)
	if basis != BasisEquity {
		t.Fatalf("expected equity basis, got %s", basis)
	}
	if math.Abs(qty-10) > 1e-9 {
		t.Fatalf("expected equity/price = 10, got %.6f", qty)
	}

	qty, basis = sizer.Quantity(100, 1000, 0)
	if basis != BasisEquity || qty <= 0 {
		t.Fatalf("expected positive equity fallback for zero stop distance, got %.6f (%s)", qty, basis)
	}
	qty, _ = sizer.Quantity(100, 1000, math.NaN())
	if qty <= 0 {
		t.Fatalf("expected positive fallback quantity for NaN stop distance")
	}
}

func TestQuantityCapped(t *testing.T) {
	sizer := NewSizer(0.02, 100)
	qty, basis := sizer.Quantity(10, 1000, 0.05)
	if basis != BasisCapped {
		t.Fatalf("expected capped basis, got %s", basis)
	}
	if math.Abs(qty*10-100) > 1e-9 {
		t.Fatalf("expected notional capped at 100, got %.6f", qty*10)
	}
}

func TestQuantityNothingToTrade(t *testing.T) {
	sizer := NewSizer(0.02, 0)
	if qty, basis := sizer.Quantity(100, 0, 0.05); qty != 0 || basis != BasisNone {
		t.Fatalf("expected no size with zero equity, got %.6f (%s)", qty, basis)
	}
	if qty, basis := sizer.Quantity(0, 1000, 0.05); qty != 0 || basis != BasisNone {
		t.Fatalf("expected no size with zero price, got %.6f (%s)", qty, basis)
	}
}
