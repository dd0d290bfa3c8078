package execution

import "fmt"

// ApplySlippage moves price against the trader: a Long (buy) pays more, a Short (sell) receives less.
func ApplySlippage(price float64, side Side, slippage float64) (float64, error) {
	switch side {
	case Long:
		return price * (1 + slippage), nil
	case Short:
		return price * (1 - slippage), nil
	default:
		return 0, fmt.Errorf("apply slippage: %w", ErrInvalidSide)
	}
}

// NetProceeds is the amount left from price*qty after the proportional transaction cost.
func NetProceeds(price, qty, cost float64) float64 {
	return price * qty * (1 - cost)
}

// Friction bundles the per-run slippage and transaction cost fractions.
type Friction struct {
	Slippage float64
	Cost     float64
}

// Fill returns the execution price for an order trading on side.
func (f Friction) Fill(price float64, side Side) (float64, error) {
	return ApplySlippage(price, side, f.Slippage)
}

// Fee is the transaction cost charged on a fill of qty at price.
func (f Friction) Fee(price, qty float64) float64 {
	return price*qty - NetProceeds(price, qty, f.Cost)
}
