package paper

import (
	"sync"
	"time"

	"github.com/jurichar/high-freq-scalping-tool/internal/execution"
)

// Action distinguishes entries from exits in the transaction history.
type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
)

// Transaction is one row of the trade ledger. PnL and Reason are only set on closes.
type Transaction struct {
	Action     Action         `json:"action"`
	Side       execution.Side `json:"side"`
	Price      float64        `json:"price"`
	Quantity   float64        `json:"quantity"`
	Time       time.Time      `json:"time"`
	PnL        float64        `json:"pnl"`
	Fee        float64        `json:"fee"`
	PositionID PositionID     `json:"position_id"`
	Reason     ExitReason     `json:"reason,omitempty"`
}

// Recorder receives every transaction accepted into the ledger.
type Recorder interface {
	Record(Transaction)
}

// Ledger keeps the ordered transaction history in memory.
type Ledger struct {
	mu  sync.Mutex
	txs []Transaction
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{txs: make([]Transaction, 0, capacity)}
}

// Append adds tx unless it is identical to the current tail, reporting whether it was stored.
func (l *Ledger) Append(tx Transaction) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.txs); n > 0 && sameTransaction(l.txs[n-1], tx) {
		return false
	}
	l.txs = append(l.txs, tx)
	return true
}

// Record satisfies Recorder so a ledger can mirror another account's history.
func (l *Ledger) Record(tx Transaction) { l.Append(tx) }

// Len returns the number of stored transactions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txs)
}

// Since returns a copy of the transactions from index from onward.
func (l *Ledger) Since(from int) []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	if from < 0 {
		from = 0
	}
	if from >= len(l.txs) {
		return nil
	}
	out := make([]Transaction, len(l.txs)-from)
	copy(out, l.txs[from:])
	return out
}

// Snapshot returns a copy of the recorded transactions.
func (l *Ledger) Snapshot() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transaction, len(l.txs))
	copy(out, l.txs)
	return out
}

// Reset clears all stored transactions.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.txs = l.txs[:0]
	l.mu.Unlock()
}

func sameTransaction(a, b Transaction) bool {
	return a.Action == b.Action &&
		a.Side == b.Side &&
		a.Price == b.Price &&
		a.Quantity == b.Quantity &&
		a.Time.Equal(b.Time) &&
		a.PnL == b.PnL &&
		a.Fee == b.Fee &&
		a.PositionID == b.PositionID &&
		a.Reason == b.Reason
}
