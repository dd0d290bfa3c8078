// Package paper simulates a single-asset margin account: positions, exits, cash and the trade ledger.
package paper

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jurichar/high-freq-scalping-tool/internal/execution"
	"github.com/jurichar/high-freq-scalping-tool/internal/risk"
	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

var (
	// ErrInsufficientFunds means the margin for an entry exceeded cash even after the one reduced-size retry.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNoSize means the sizer produced no tradeable quantity.
	ErrNoSize = errors.New("no tradeable size")
	// ErrOppositeOpen means the flip policy requires a flat book before entering.
	ErrOppositeOpen = errors.New("opposite side open")
)

// DistanceMode says how bar stop/take-profit distances are expressed.
type DistanceMode string

const (
	// DistanceAbsolute treats distances as price units (e.g. ATR multiples).
	DistanceAbsolute DistanceMode = "absolute"
	// DistanceFraction treats distances as fractions of the entry price.
	DistanceFraction DistanceMode = "fraction"
)

func (m DistanceMode) absolute(distance, price float64) float64 {
	if m == DistanceFraction {
		return distance * price
	}
	return distance
}

// FlipPolicy decides what an entry signal does while the opposite side is open.
type FlipPolicy string

const (
	// FlipFlatten closes the opposite side, then enters.
	FlipFlatten FlipPolicy = "flatten"
	// FlipRequireFlat ignores the entry until the opposite side has been closed.
	FlipRequireFlat FlipPolicy = "require_flat"
)

// Config is fixed for the lifetime of an account.
type Config struct {
	InitialCash          float64
	TransactionCost      float64
	Leverage             float64
	Slippage             float64
	RiskPerTrade         float64
	TrailingStopFraction float64
	MaxNotionalPerTrade  float64
	DistanceMode         DistanceMode
	FlipPolicy           FlipPolicy
}

// Validate rejects configurations the account cannot honour and fills empty modes with defaults.
func (c *Config) Validate() error {
	if c.DistanceMode == "" {
		c.DistanceMode = DistanceAbsolute
	}
	if c.FlipPolicy == "" {
		c.FlipPolicy = FlipFlatten
	}
	c.DistanceMode = DistanceMode(strings.ToLower(string(c.DistanceMode)))
	c.FlipPolicy = FlipPolicy(strings.ToLower(string(c.FlipPolicy)))

	switch {
	case c.InitialCash <= 0:
		return fmt.Errorf("initial cash %.8g must be positive", c.InitialCash)
	case c.Leverage <= 0:
		return fmt.Errorf("leverage %.8g must be positive", c.Leverage)
	case c.TransactionCost < 0 || c.TransactionCost >= 1:
		return fmt.Errorf("transaction cost %.8g must be in [0,1)", c.TransactionCost)
	case c.Slippage < 0 || c.Slippage >= 1:
		return fmt.Errorf("slippage %.8g must be in [0,1)", c.Slippage)
	case c.RiskPerTrade <= 0 || c.RiskPerTrade > 1:
		return fmt.Errorf("risk per trade %.8g must be in (0,1]", c.RiskPerTrade)
	case c.TrailingStopFraction < 0:
		return fmt.Errorf("trailing stop fraction %.8g must not be negative", c.TrailingStopFraction)
	case c.MaxNotionalPerTrade < 0:
		return fmt.Errorf("max notional per trade %.8g must not be negative", c.MaxNotionalPerTrade)
	}
	switch c.DistanceMode {
	case DistanceAbsolute, DistanceFraction:
	default:
		return fmt.Errorf("unknown distance mode %q", c.DistanceMode)
	}
	switch c.FlipPolicy {
	case FlipFlatten, FlipRequireFlat:
	default:
		return fmt.Errorf("unknown flip policy %q", c.FlipPolicy)
	}
	return nil
}

// EventKind tags what an account operation did.
type EventKind string

const (
	EventOpened    EventKind = "opened"
	EventClosed    EventKind = "closed"
	EventRejected  EventKind = "rejected"
	EventStopMoved EventKind = "stop_moved"
)

// Event is the structured result of an account operation. Callers decide whether to log, count or ignore it.
type Event struct {
	Kind        EventKind
	Time        time.Time
	Side        execution.Side
	Position    Position
	Transaction Transaction
	Sizing      risk.Basis
	// Err is set on rejections (ErrInsufficientFunds, ErrNoSize, ErrOppositeOpen).
	Err error
}

// Option customises an Account.
type Option func(*Account)

// WithRecorder forwards every accepted transaction to r.
func WithRecorder(r Recorder) Option {
	return func(a *Account) {
		if r != nil {
			a.recorders = append(a.recorders, r)
		}
	}
}

// Account holds cash, open positions and the transaction history for one simulated run.
type Account struct {
	mu          sync.Mutex
	cfg         Config
	friction    execution.Friction
	sizer       risk.Sizer
	cash        float64
	realizedPnL float64
	book        book
	ledger      *Ledger
	recorders   []Recorder
}

// NewAccount validates cfg and constructs an account holding the initial cash.
func NewAccount(cfg Config, opts ...Option) (*Account, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("paper account: %w", err)
	}
	a := &Account{
		cfg:      cfg,
		friction: execution.Friction{Slippage: cfg.Slippage, Cost: cfg.TransactionCost},
		sizer:    risk.NewSizer(cfg.RiskPerTrade, cfg.MaxNotionalPerTrade),
		cash:     cfg.InitialCash,
		ledger:   NewLedger(64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the validated configuration.
func (a *Account) Config() Config { return a.cfg }

// CheckExits closes every position whose stop or take-profit lies inside the bar, using the levels in force
// at the bar's open. Survivors then ratchet their trailing stop on the close, effective from the next bar.
func (a *Account) CheckExits(bar signal.Bar) ([]Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var events []Event
	offset := trailingOffset(a.cfg.TrailingStopFraction, a.cfg.DistanceMode, bar)
	for _, id := range a.book.openIDs() {
		pos := a.book.get(id)
		if pos == nil || pos.Closed {
			continue
		}
		if trig, hit := exitTrigger(pos, bar); hit {
			ev, err := a.closeLocked(pos, trig.price, bar.Time, trig.reason)
			if err != nil {
				return events, err
			}
			events = append(events, ev)
			continue
		}
		if ratchetStop(pos, bar.Close, offset) {
			events = append(events, Event{Kind: EventStopMoved, Time: bar.Time, Side: pos.Side, Position: pos.clone()})
		}
	}
	return events, nil
}

// HandleSignal interprets the bar's signal: entries flip or open, explicit exits close, hold does nothing.
func (a *Account) HandleSignal(bar signal.Bar) ([]Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch bar.Signal {
	case signal.Hold:
		return nil, nil
	case signal.EnterLong:
		return a.enterLocked(execution.Long, bar)
	case signal.EnterShort:
		return a.enterLocked(execution.Short, bar)
	case signal.ExitLong:
		return a.exitSideLocked(execution.Long, bar)
	case signal.ExitShort:
		return a.exitSideLocked(execution.Short, bar)
	default:
		return nil, fmt.Errorf("handle signal: %w: %s", signal.ErrMalformedBar, bar.Signal)
	}
}

// Open sizes and opens a position on side at the bar close without any flip handling.
func (a *Account) Open(side execution.Side, bar signal.Bar) (Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openLocked(side, bar)
}

// Close closes the open position id at price (before slippage).
func (a *Account) Close(id PositionID, price float64, at time.Time, reason ExitReason) (Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos := a.book.get(id)
	if pos == nil {
		return Event{}, fmt.Errorf("close position %d: unknown id", id)
	}
	if pos.Closed || !a.book.isOpen(id) {
		return Event{}, fmt.Errorf("close position %d: %w", id, ErrAlreadyClosed)
	}
	return a.closeLocked(pos, price, at, reason)
}

func (a *Account) enterLocked(side execution.Side, bar signal.Bar) ([]Event, error) {
	if a.book.bySide(side) != nil {
		return nil, nil
	}
	opposite, err := side.Opposite()
	if err != nil {
		return nil, err
	}

	var events []Event
	if pos := a.book.bySide(opposite); pos != nil {
		if a.cfg.FlipPolicy == FlipRequireFlat {
			return []Event{{Kind: EventRejected, Time: bar.Time, Side: side, Err: ErrOppositeOpen}}, nil
		}
		ev, err := a.closeLocked(pos, bar.Close, bar.Time, ExitFlip)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	ev, err := a.openLocked(side, bar)
	if err != nil {
		return events, err
	}
	return append(events, ev), nil
}

func (a *Account) exitSideLocked(side execution.Side, bar signal.Bar) ([]Event, error) {
	pos := a.book.bySide(side)
	if pos == nil {
		return nil, nil
	}
	ev, err := a.closeLocked(pos, bar.Close, bar.Time, ExitSignal)
	if err != nil {
		return nil, err
	}
	return []Event{ev}, nil
}

// openLocked never returns an error for recoverable conditions; those come back as rejection events.
func (a *Account) openLocked(side execution.Side, bar signal.Bar) (Event, error) {
	price, err := a.friction.Fill(bar.Close, side)
	if err != nil {
		return Event{}, fmt.Errorf("open %s: %w", side, err)
	}

	stopDist := a.cfg.DistanceMode.absolute(bar.StopDistance, price)
	takeDist := a.cfg.DistanceMode.absolute(bar.TakeProfitDistance, price)

	equity := a.equityLocked(bar.Close)
	qty, basis := a.sizer.Quantity(price, equity, stopDist/price)
	if qty <= 0 {
		return Event{Kind: EventRejected, Time: bar.Time, Side: side, Sizing: basis, Err: ErrNoSize}, nil
	}

	perUnit := price * (1 + a.cfg.TransactionCost) / a.cfg.Leverage
	if qty*perUnit > a.cash+epsilon {
		// One retry with everything cash can fund.
		qty = a.cash / perUnit
		basis = risk.BasisEquity
		if a.cash <= epsilon || qty <= 0 || math.IsNaN(qty) || qty*perUnit > a.cash+epsilon {
			return Event{Kind: EventRejected, Time: bar.Time, Side: side, Sizing: basis, Err: ErrInsufficientFunds}, nil
		}
	}

	pos, err := newPosition(a.book.nextID(), side, qty, price, bar.Time)
	if err != nil {
		return Event{}, err
	}
	pos.Margin = price * qty / a.cfg.Leverage
	pos.EntryFee = price * qty * a.cfg.TransactionCost / a.cfg.Leverage
	setLevels(pos, stopDist, takeDist)

	a.cash -= pos.Margin + pos.EntryFee
	if a.cash < 0 { // float residue within epsilon
		a.cash = 0
	}
	a.book.add(pos)

	tx := Transaction{
		Action:     ActionOpen,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		Time:       bar.Time,
		Fee:        pos.EntryFee,
		PositionID: pos.ID,
	}
	a.recordLocked(tx)
	return Event{Kind: EventOpened, Time: bar.Time, Side: side, Position: pos.clone(), Transaction: tx, Sizing: basis}, nil
}

func setLevels(pos *Position, stopDist, takeDist float64) {
	switch pos.Side {
	case execution.Long:
		if stopDist > 0 && pos.EntryPrice-stopDist > 0 {
			v := pos.EntryPrice - stopDist
			pos.StopLoss = &v
		}
		if takeDist > 0 {
			v := pos.EntryPrice + takeDist
			pos.TakeProfit = &v
		}
	case execution.Short:
		if stopDist > 0 {
			v := pos.EntryPrice + stopDist
			pos.StopLoss = &v
		}
		if takeDist > 0 && pos.EntryPrice-takeDist > 0 {
			v := pos.EntryPrice - takeDist
			pos.TakeProfit = &v
		}
	}
}

// closeLocked exits pos at price; the exit trades on the opposite side so slippage works against it.
func (a *Account) closeLocked(pos *Position, price float64, at time.Time, reason ExitReason) (Event, error) {
	exitSide, err := pos.Side.Opposite()
	if err != nil {
		return Event{}, fmt.Errorf("close position %d: %w", pos.ID, err)
	}
	fill, err := a.friction.Fill(price, exitSide)
	if err != nil {
		return Event{}, fmt.Errorf("close position %d: %w", pos.ID, err)
	}
	if err := pos.Close(fill, at); err != nil {
		return Event{}, err
	}
	a.book.remove(pos.ID)

	fee := a.friction.Fee(fill, pos.Quantity)
	a.cash += pos.Margin + pos.RealizedPnL - fee
	a.realizedPnL += pos.RealizedPnL

	tx := Transaction{
		Action:     ActionClose,
		Side:       pos.Side,
		Price:      fill,
		Quantity:   pos.Quantity,
		Time:       at,
		PnL:        pos.RealizedPnL,
		Fee:        fee,
		PositionID: pos.ID,
		Reason:     reason,
	}
	a.recordLocked(tx)
	return Event{Kind: EventClosed, Time: at, Side: pos.Side, Position: pos.clone(), Transaction: tx}, nil
}

func (a *Account) recordLocked(tx Transaction) {
	if !a.ledger.Append(tx) {
		return
	}
	for _, r := range a.recorders {
		r.Record(tx)
	}
}

func (a *Account) equityLocked(mark float64) float64 {
	equity := a.cash
	for _, id := range a.book.open {
		if pos := a.book.get(id); pos != nil {
			equity += pos.Margin + pos.Unrealized(mark)
		}
	}
	return equity
}

// Equity is cash plus posted margin and unrealized PnL of open positions marked at mark.
func (a *Account) Equity(mark float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.equityLocked(mark)
}

// Cash returns uncommitted cash.
func (a *Account) Cash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// RealizedPnL returns total gross profit and loss of closed positions.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}

// HasOpen reports whether a position on side is open.
func (a *Account) HasOpen(side execution.Side) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.book.bySide(side) != nil
}

// OpenPositions returns copies of the open positions in opening order.
func (a *Account) OpenPositions() []Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Position, 0, len(a.book.open))
	for _, id := range a.book.open {
		if pos := a.book.get(id); pos != nil {
			out = append(out, pos.clone())
		}
	}
	return out
}

// Position returns a copy of any position ever opened, open or closed.
func (a *Account) Position(id PositionID) (Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos := a.book.get(id)
	if pos == nil {
		return Position{}, false
	}
	return pos.clone(), true
}

// Transactions returns a copy of the transaction history.
func (a *Account) Transactions() []Transaction {
	return a.ledger.Snapshot()
}

// Ledger exposes the underlying history for incremental reads.
func (a *Account) Ledger() *Ledger { return a.ledger }

// PositionSnapshot exposes a read-only view of one open position.
type PositionSnapshot struct {
	ID         PositionID
	Side       execution.Side
	Qty        float64
	EntryPrice float64
	StopLoss   *float64
	TakeProfit *float64
	Margin     float64
	Unrealized float64
}

// Snapshot represents a consistent view of the account marked at one price.
type Snapshot struct {
	Cash        float64
	RealizedPnL float64
	Equity      float64
	Positions   []PositionSnapshot
}

// Snapshot returns balances and open positions marked at mark.
func (a *Account) Snapshot(mark float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make([]PositionSnapshot, 0, len(a.book.open))
	for _, id := range a.book.open {
		pos := a.book.get(id)
		if pos == nil {
			continue
		}
		c := pos.clone()
		positions = append(positions, PositionSnapshot{
			ID:         c.ID,
			Side:       c.Side,
			Qty:        c.Quantity,
			EntryPrice: c.EntryPrice,
			StopLoss:   c.StopLoss,
			TakeProfit: c.TakeProfit,
			Margin:     c.Margin,
			Unrealized: c.Unrealized(mark),
		})
	}
	return Snapshot{
		Cash:        a.cash,
		RealizedPnL: a.realizedPnL,
		Equity:      a.equityLocked(mark),
		Positions:   positions,
	}
}
