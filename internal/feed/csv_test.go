package feed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

func TestReadCSVHeaderAliases(t *testing.T) {
	input := "\ufeffDate,Open,High,Low,Close,Signal,ATR_Stop_Loss,ATR_Take_Profit\n" +
		"2024-01-02,100,105,95,102,1,3.5,7\n" +
		"2024-01-03 00:00:00,102,104,99,100,-1,3,\n" +
		"\n" +
		"1704326400,100,101,98,99,0,,\n"

	bars, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV returned error: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if bars[0].Signal != signal.EnterLong || bars[0].StopDistance != 3.5 || bars[0].TakeProfitDistance != 7 {
		t.Fatalf("unexpected first bar %+v", bars[0])
	}
	if bars[1].Signal != signal.EnterShort || bars[1].TakeProfitDistance != 0 {
		t.Fatalf("unexpected second bar %+v", bars[1])
	}
	want := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	if !bars[2].Time.Equal(want) {
		t.Fatalf("expected unix time %s, got %s", want, bars[2].Time)
	}
}

func TestReadCSVMinimalColumns(t *testing.T) {
	bars, err := ReadCSV(strings.NewReader("timestamp_ms,close\n1704067200000,42\n"))
	if err != nil {
		t.Fatalf("ReadCSV returned error: %v", err)
	}
	if len(bars) != 1 || bars[0].Close != 42 || bars[0].Signal != signal.Hold {
		t.Fatalf("unexpected bars %+v", bars)
	}
	if err := bars[0].Validate(); err != nil {
		t.Fatalf("expected backfilled bar to validate: %v", err)
	}
}

func TestReadCSVErrors(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := ReadCSV(strings.NewReader("open,close\n1,2\n")); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected missing time column, got %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("time,close\nyesterday,2\n")); !errors.Is(err, signal.ErrMalformedBar) {
		t.Fatalf("expected malformed bar for bad time, got %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("time,close,signal\n2024-01-01,2,0.5\n")); !errors.Is(err, signal.ErrMalformedBar) {
		t.Fatalf("expected malformed bar for fractional signal, got %v", err)
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := os.WriteFile(path, []byte("time,close\n2024-01-01T00:00:00Z,10\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	bars, err := LoadCSV(path)
	if err != nil || len(bars) != 1 {
		t.Fatalf("LoadCSV: %v %+v", err, bars)
	}
	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
