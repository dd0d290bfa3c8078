// Package feed produces bars for the engine: historical CSV files and live Binance kline streams.
package feed

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jurichar/high-freq-scalping-tool/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic bars (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams closed klines from Binance public websockets.
	ProviderBinance = "binance"
)

const (
	defaultBinanceBaseURL = "wss://stream.binance.com:9443"
	defaultInterval       = "1m"
	defaultStubInterval   = 500 * time.Millisecond
)

// Feed represents a pluggable live bar stream.
type Feed struct {
	provider     string
	symbol       string
	interval     string
	baseURL      string
	log          zerolog.Logger
	stubInterval time.Duration
	minBackoff   time.Duration
	maxBackoff   time.Duration
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithBaseURL points the Binance provider at another websocket host.
func WithBaseURL(baseURL string) Option {
	return func(f *Feed) {
		if baseURL != "" {
			f.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithBackoff bounds the reconnect delay.
func WithBackoff(min, max time.Duration) Option {
	return func(f *Feed) {
		if min > 0 {
			f.minBackoff = min
		}
		if max > 0 {
			f.maxBackoff = max
		}
	}
}

// WithStubInterval changes how often the stub provider emits.
func WithStubInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.stubInterval = d
		}
	}
}

// NewFeed constructs a feed for one symbol and kline interval.
func NewFeed(provider, symbol, interval string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	if interval == "" {
		interval = defaultInterval
	}
	f := &Feed{
		provider:     strings.ToLower(provider),
		symbol:       strings.ToUpper(strings.TrimSpace(symbol)),
		interval:     interval,
		baseURL:      defaultBinanceBaseURL,
		log:          log,
		stubInterval: defaultStubInterval,
		minBackoff:   time.Second,
		maxBackoff:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.minBackoff > f.maxBackoff {
		f.minBackoff = f.maxBackoff
	}
	return f
}

// Run pushes bars onto out until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Bar) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- signal.Bar) error {
	ticker := time.NewTicker(f.stubInterval)
	defer ticker.Stop()

	px := 100.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			open := px
			px += 0.1
			bar := signal.Bar{Time: ts.UTC(), Open: open, High: px, Low: open, Close: px, Volume: 1}
			select {
			case out <- bar:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
