// Package pricing fetches token market snapshots and answers time-indexed price queries.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"memecoin-signal-lab/internal/domain"
)

// ErrPriceUnavailable is returned when no market data exists for a coin.
// Callers treat it as "no measurement", not as a failure.
var ErrPriceUnavailable = errors.New("price unavailable")

// Provider returns the current market snapshot for a coin.
type Provider interface {
	Metrics(ctx context.Context, coin string) (*domain.TokenMetrics, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, coin string) (*domain.TokenMetrics, error)

// Metrics calls f.
func (f ProviderFunc) Metrics(ctx context.Context, coin string) (*domain.TokenMetrics, error) {
	return f(ctx, coin)
}

// FallbackProvider asks each provider in turn and returns the first snapshot found.
// A provider answering ErrPriceUnavailable or failing moves on to the next one.
type FallbackProvider struct {
	providers []Provider
	logger    *log.Logger
}

// NewFallbackProvider creates a chain over providers. A nil logger uses log.Default().
func NewFallbackProvider(logger *log.Logger, providers ...Provider) *FallbackProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &FallbackProvider{providers: providers, logger: logger}
}

// Metrics implements Provider.
func (f *FallbackProvider) Metrics(ctx context.Context, coin string) (*domain.TokenMetrics, error) {
	var lastErr error
	for i, p := range f.providers {
		m, err := p.Metrics(ctx, coin)
		if err == nil && m != nil {
			return m, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil && !errors.Is(err, ErrPriceUnavailable) {
			f.logger.Printf("[pricing] provider %d failed for %s: %v", i, coin, err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all providers failed for %s: %w", coin, lastErr)
	}
	return nil, ErrPriceUnavailable
}

// Momentum thresholds for HasMomentum.
const (
	DefaultMomentumVolume    = 100_000.0
	DefaultMomentumMarketCap = 1_000_000.0
)

// HasMomentum reports whether a snapshot clears the volume and market cap thresholds.
func HasMomentum(m *domain.TokenMetrics, minVolume, minMarketCap float64) bool {
	if m == nil {
		return false
	}
	return m.Volume24h >= minVolume && m.MarketCap >= minMarketCap
}

var (
	_ Provider = ProviderFunc(nil)
	_ Provider = (*FallbackProvider)(nil)
)
