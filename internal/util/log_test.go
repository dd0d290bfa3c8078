package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}

	logger = NewLogger("")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %s", logger.GetLevel())
	}
}

func TestNewLoggerToWriters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "WARN", false)
	logger.Info().Msg("hidden")
	logger.Warn().Str("side", "long").Msg("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"side":"long"`) {
		t.Fatalf("unexpected json output %q", out)
	}

	buf.Reset()
	pretty := NewLoggerTo(&buf, "info", true)
	pretty.Info().Msg("console")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "console") {
		t.Fatalf("expected console formatted output, got %q", buf.String())
	}
}
