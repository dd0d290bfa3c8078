package paper

import (
	"errors"
	"fmt"
	"time"

	"github.com/jurichar/high-freq-scalping-tool/internal/execution"
)

// ErrAlreadyClosed is returned when a position is closed a second time.
var ErrAlreadyClosed = errors.New("position already closed")

// PositionID is a stable handle into the account's position arena. IDs start at 1.
type PositionID uint64

// Position is one directional exposure. Prices are execution prices (after slippage).
type Position struct {
	ID         PositionID
	Side       execution.Side
	Quantity   float64
	EntryPrice float64
	EntryTime  time.Time
	StopLoss   *float64
	TakeProfit *float64

	// Margin is the collateral posted at entry and returned on close; EntryFee is the cost paid on top of it.
	Margin   float64
	EntryFee float64

	Closed      bool
	ExitPrice   float64
	ExitTime    time.Time
	RealizedPnL float64
}

func newPosition(id PositionID, side execution.Side, qty, entry float64, at time.Time) (*Position, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("new position: %w", execution.ErrInvalidSide)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("new position: quantity %.8g must be positive", qty)
	}
	if entry <= 0 {
		return nil, fmt.Errorf("new position: entry price %.8g must be positive", entry)
	}
	return &Position{ID: id, Side: side, Quantity: qty, EntryPrice: entry, EntryTime: at}, nil
}

// PnLAt is the gross profit of the position if it were closed at price.
func (p *Position) PnLAt(price float64) float64 {
	sign, err := p.Side.Sign()
	if err != nil {
		return 0
	}
	return sign * (price - p.EntryPrice) * p.Quantity
}

// Unrealized marks an open position at mark. Closed positions carry no unrealized PnL.
func (p *Position) Unrealized(mark float64) float64 {
	if p.Closed {
		return 0
	}
	return p.PnLAt(mark)
}

// Close fixes the exit and realized PnL. It can only happen once.
func (p *Position) Close(exitPrice float64, at time.Time) error {
	if p.Closed {
		return fmt.Errorf("close position %d: %w", p.ID, ErrAlreadyClosed)
	}
	if !p.Side.Valid() {
		return fmt.Errorf("close position %d: %w", p.ID, execution.ErrInvalidSide)
	}
	p.ExitPrice = exitPrice
	p.ExitTime = at
	p.RealizedPnL = p.PnLAt(exitPrice)
	p.Closed = true
	return nil
}

// clone copies the position including its optional levels so callers cannot mutate engine state.
func (p *Position) clone() Position {
	out := *p
	if p.StopLoss != nil {
		v := *p.StopLoss
		out.StopLoss = &v
	}
	if p.TakeProfit != nil {
		v := *p.TakeProfit
		out.TakeProfit = &v
	}
	return out
}

// book stores every position ever opened in an arena indexed by ID, plus the ordered open set.
// Closing removes the ID from the open set only; iteration works on copies of that set.
type book struct {
	arena []*Position
	open  []PositionID
}

func (b *book) nextID() PositionID { return PositionID(len(b.arena) + 1) }

func (b *book) add(p *Position) {
	b.arena = append(b.arena, p)
	b.open = append(b.open, p.ID)
}

func (b *book) get(id PositionID) *Position {
	if id == 0 || int(id) > len(b.arena) {
		return nil
	}
	return b.arena[id-1]
}

func (b *book) remove(id PositionID) {
	for i, openID := range b.open {
		if openID == id {
			b.open = append(b.open[:i], b.open[i+1:]...)
			return
		}
	}
}

func (b *book) openIDs() []PositionID {
	out := make([]PositionID, len(b.open))
	copy(out, b.open)
	return out
}

func (b *book) bySide(side execution.Side) *Position {
	for _, id := range b.open {
		if p := b.get(id); p != nil && p.Side == side {
			return p
		}
	}
	return nil
}

func (b *book) isOpen(id PositionID) bool {
	for _, openID := range b.open {
		if openID == id {
			return true
		}
	}
	return false
}
