package execution

import (
	"errors"
	"math"
	"testing"
)

func TestApplySlippageDirections(t *testing.T) {
	long, err := ApplySlippage(100, Long, 0.05)
	if err != nil {
		t.Fatalf("ApplySlippage long returned error: %v", err)
	}
	if math.Abs(long-105) > 1e-9 {
		t.Fatalf("expected 105 for long fill, got %.6f", long)
	}

	short, err := ApplySlippage(100, Short, 0.05)
	if err != nil {
		t.Fatalf("ApplySlippage short returned error: %v", err)
	}
	if math.Abs(short-95) > 1e-9 {
		t.Fatalf("expected 95 for short fill, got %.6f", short)
	}
}

func TestApplySlippageInvalidSide(t *testing.T) {
	_, err := ApplySlippage(100, Side(0), 0.05)
	if !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("expected ErrInvalidSide, got %v", err)
	}
	_, err = ApplySlippage(100, Side(7), 0.05)
	if !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("expected ErrInvalidSide for out-of-range side, got %v", err)
	}
}

func TestNetProceeds(t *testing.T) {
	if got := NetProceeds(100, 100, 0.01); math.Abs(got-9900) > 1e-9 {
		t.Fatalf("expected 9900, got %.6f", got)
	}
	if got := NetProceeds(42, 2, 0); got != 84 {
		t.Fatalf("expected zero-cost proceeds 84, got %.6f", got)
	}
}

func TestFrictionFee(t *testing.T) {
	f := Friction{Slippage: 0, Cost: 0.001}
	if fee := f.Fee(1000, 2); math.Abs(fee-2) > 1e-9 {
		t.Fatalf("expected fee 2, got %.6f", fee)
	}
	px, err := f.Fill(1000, Long)
	if err != nil || px != 1000 {
		t.Fatalf("expected unslipped fill 1000, got %.6f (%v)", px, err)
	}
}

func TestSideHelpers(t *testing.T) {
	opp, err := Long.Opposite()
	if err != nil || opp != Short {
		t.Fatalf("expected Short opposite of Long, got %s (%v)", opp, err)
	}
	if _, err := Side(0).Opposite(); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("expected ErrInvalidSide for zero side")
	}

	for raw, want := range map[string]Side{"long": Long, "SHORT": Short, " buy ": Long, "sell": Short} {
		got, err := ParseSide(raw)
		if err != nil || got != want {
			t.Fatalf("ParseSide(%q) = %s, %v", raw, got, err)
		}
	}
	if _, err := ParseSide("flat"); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("expected ErrInvalidSide for unknown side")
	}

	text, err := Short.MarshalText()
	if err != nil || string(text) != "short" {
		t.Fatalf("unexpected MarshalText output %q (%v)", text, err)
	}
}
