// Package execution holds the fill-price and fee model shared by the paper account and the backtest loop.
package execution

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSide is returned for any side value other than Long or Short.
var ErrInvalidSide = errors.New("invalid side")

// Side enumerates the two directional exposures the engine understands.
// The zero value is deliberately invalid.
type Side uint8

const (
	// Long profits when price rises; opening it is a buy.
	Long Side = iota + 1
	// Short profits when price falls; opening it is a sell.
	Short
)

// Valid reports whether s is Long or Short.
func (s Side) Valid() bool {
	return s == Long || s == Short
}

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Opposite returns the side that offsets s. Closing a long trades on the short side and vice versa.
func (s Side) Opposite() (Side, error) {
	switch s {
	case Long:
		return Short, nil
	case Short:
		return Long, nil
	default:
		return 0, fmt.Errorf("opposite of %s: %w", s, ErrInvalidSide)
	}
}

// Sign is +1 for Long and -1 for Short.
func (s Side) Sign() (float64, error) {
	switch s {
	case Long:
		return 1, nil
	case Short:
		return -1, nil
	default:
		return 0, fmt.Errorf("sign of %s: %w", s, ErrInvalidSide)
	}
}

// MarshalText encodes the side as "long" or "short" for JSON and CSV output.
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal %s: %w", s, ErrInvalidSide)
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts the forms produced by MarshalText (case-insensitive).
func (s *Side) UnmarshalText(text []byte) error {
	parsed, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSide converts "long"/"short" (also "buy"/"sell") into a Side.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	default:
		return 0, fmt.Errorf("parse %q: %w", raw, ErrInvalidSide)
	}
}
