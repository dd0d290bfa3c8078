// Package report writes run artefacts as CSV files.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jurichar/high-freq-scalping-tool/internal/backtest"
	"github.com/jurichar/high-freq-scalping-tool/internal/paper"
)

const (
	TransactionsFile = "transactions.csv"
	EquityFile       = "equity.csv"
)

var transactionHeader = []string{"time", "action", "side", "price", "quantity", "pnl", "fee", "position_id", "reason"}

// WriteTransactions writes the ledger in order with a header row.
func WriteTransactions(w io.Writer, txs []paper.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range txs {
		rec := []string{
			tx.Time.Format(time.RFC3339),
			string(tx.Action),
			tx.Side.String(),
			formatF(tx.Price),
			formatF(tx.Quantity),
			formatF(tx.PnL),
			formatF(tx.Fee),
			strconv.FormatUint(uint64(tx.PositionID), 10),
			string(tx.Reason),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write transaction %d: %w", tx.PositionID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquity writes one row per equity point.
func WriteEquity(w io.Writer, points []backtest.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "equity"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range points {
		if err := cw.Write([]string{p.Time.Format(time.RFC3339), formatF(p.Value)}); err != nil {
			return fmt.Errorf("write equity point: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDir writes both CSV files into dir and returns their paths.
func WriteDir(dir string, res backtest.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{TransactionsFile, func(w io.Writer) error { return WriteTransactions(w, res.Transactions) }},
		{EquityFile, func(w io.Writer) error { return WriteEquity(w, res.Equity) }},
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, f.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
