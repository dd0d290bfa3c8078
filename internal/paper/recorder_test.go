package paper

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jurichar/high-freq-scalping-tool/internal/execution"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "transactions.jsonl")

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	tx := Transaction{Action: ActionClose, Side: execution.Short, Price: 1000, Quantity: 1, Time: t0, PnL: 12.5, PositionID: 7, Reason: ExitStopLoss}
	recorder.Record(tx)
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	recorder.Record(tx)
	if err := recorder.Err(); err != nil {
		t.Fatalf("record after close should be ignored, got %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected one line in recorder output")
	}
	var raw map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if raw["side"] != "short" || raw["reason"] != "stop_loss" || raw["action"] != "close" {
		t.Fatalf("unexpected encoded transaction %v", raw)
	}
	var decoded Transaction
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if decoded.Side != tx.Side || decoded.PnL != tx.PnL || !decoded.Time.Equal(tx.Time) {
		t.Fatalf("unexpected decoded transaction %+v", decoded)
	}
	if scanner.Scan() {
		t.Fatalf("expected a single line")
	}
}
