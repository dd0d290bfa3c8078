package feed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

const (
	colTime = iota
	colOpen
	colHigh
	colLow
	colClose
	colVolume
	colSignal
	colStop
	colTake
	numColumns
)

// Accepted header names per column, compared case-insensitively.
var columnAliases = [numColumns][]string{
	colTime:   {"time", "date", "datetime", "timestamp", "timestamp_ms", "open_time"},
	colOpen:   {"open"},
	colHigh:   {"high"},
	colLow:    {"low"},
	colClose:  {"close", "price"},
	colVolume: {"volume"},
	colSignal: {"signal"},
	colStop:   {"stop_distance", "atr_stop_loss", "stop"},
	colTake:   {"take_profit_distance", "atr_take_profit", "take_profit"},
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LoadCSV reads every bar from a CSV file with a header row.
func LoadCSV(path string) ([]signal.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer file.Close()
	return ReadCSV(bufio.NewReader(file))
}

// ReadCSV parses bars from r. Only time and close are required; other columns default to zero.
// Rows keep their file order. A row that cannot be parsed aborts the read with ErrMalformedBar.
func ReadCSV(r io.Reader) ([]signal.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("read bars: empty input")
		}
		return nil, fmt.Errorf("read bars header: %w", err)
	}
	index, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	bars := make([]signal.Bar, 0, 1024)
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read bars line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		bar, err := parseRow(rec, index)
		if err != nil {
			return nil, fmt.Errorf("bars line %d: %w: %v", line, signal.ErrMalformedBar, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func mapColumns(header []string) ([numColumns]int, error) {
	var index [numColumns]int
	for i := range index {
		index[i] = -1
	}
	for pos, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for col, aliases := range columnAliases {
			if index[col] >= 0 {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					index[col] = pos
				}
			}
		}
	}
	if index[colTime] < 0 {
		return index, fmt.Errorf("bars header: %w: time", ErrMissingColumn)
	}
	if index[colClose] < 0 {
		return index, fmt.Errorf("bars header: %w: close", ErrMissingColumn)
	}
	return index, nil
}

func parseRow(rec []string, index [numColumns]int) (signal.Bar, error) {
	field := func(col int) string {
		pos := index[col]
		if pos < 0 || pos >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[pos])
	}
	number := func(col int) (float64, error) {
		raw := field(col)
		if raw == "" {
			return 0, nil
		}
		return strconv.ParseFloat(raw, 64)
	}

	ts, err := parseTime(field(colTime))
	if err != nil {
		return signal.Bar{}, err
	}
	bar := signal.Bar{Time: ts}
	targets := []struct {
		col int
		dst *float64
	}{
		{colOpen, &bar.Open},
		{colHigh, &bar.High},
		{colLow, &bar.Low},
		{colClose, &bar.Close},
		{colVolume, &bar.Volume},
		{colStop, &bar.StopDistance},
		{colTake, &bar.TakeProfitDistance},
	}
	for _, t := range targets {
		v, err := number(t.col)
		if err != nil {
			return signal.Bar{}, err
		}
		*t.dst = v
	}

	raw, err := number(colSignal)
	if err != nil {
		return signal.Bar{}, err
	}
	if raw != math.Trunc(raw) {
		return signal.Bar{}, fmt.Errorf("signal %v is not an integer", raw)
	}
	bar.Signal = signal.Signal(int(raw))
	return bar, nil
}

// parseTime accepts RFC3339 and common date layouts, or a unix timestamp in seconds or milliseconds.
func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", raw)
}
