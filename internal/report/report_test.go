package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jurichar/high-freq-scalping-tool/internal/backtest"
	"github.com/jurichar/high-freq-scalping-tool/internal/execution"
	"github.com/jurichar/high-freq-scalping-tool/internal/paper"
)

var t0 = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func sample() backtest.Result {
	return backtest.Result{
		Transactions: []paper.Transaction{
			{Action: paper.ActionOpen, Side: execution.Short, Price: 8611.5, Quantity: 0.11, Time: t0, PositionID: 1},
			{Action: paper.ActionClose, Side: execution.Short, Price: 9156.5, Quantity: 0.11, Time: t0.Add(time.Hour), PnL: -59.95, Fee: 0.5, PositionID: 1, Reason: paper.ExitStopLoss},
		},
		Equity: []backtest.EquityPoint{{Time: t0, Value: 3000}, {Time: t0.Add(time.Hour), Value: 2940.05}},
	}
}

func TestWriteTransactions(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTransactions(&buf, sample().Transactions); err != nil {
		t.Fatalf("WriteTransactions: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 || strings.Join(rows[0], ",") != strings.Join(transactionHeader, ",") {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[2][1] != "close" || rows[2][2] != "short" || rows[2][3] != "9156.5" || rows[2][8] != "stop_loss" {
		t.Fatalf("unexpected close row %v", rows[2])
	}
	if rows[1][0] != "2024-02-01T12:00:00Z" {
		t.Fatalf("unexpected time format %q", rows[1][0])
	}
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	paths, err := WriteDir(dir, sample())
	if err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 files, got %v", paths)
	}
	data, err := os.ReadFile(filepath.Join(dir, EquityFile))
	if err != nil {
		t.Fatalf("read equity: %v", err)
	}
	want := "time,equity\n2024-02-01T12:00:00Z,3000\n2024-02-01T13:00:00Z,2940.05\n"
	if string(data) != want {
		t.Fatalf("unexpected equity csv:\n%s", data)
	}
}
