package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memecoin-signal-lab/internal/lookup"
	"memecoin-signal-lab/internal/storage"
)

// Defaults for History lookups.
const (
	DefaultBaselineTolerance = time.Hour
	DefaultForwardWindow     = 7 * 24 * time.Hour
)

// HistoryOptions configures History.
type HistoryOptions struct {
	// Tolerance bounds how far from the target a baseline sample may lie.
	Tolerance time.Duration
	// ForwardWindow bounds how far past the target PriceAfter searches.
	ForwardWindow time.Duration
}

// History answers point-in-time price queries from recorded samples.
type History struct {
	store         storage.PriceSampleStore
	tolerance     time.Duration
	forwardWindow time.Duration
}

// NewHistory creates a History over store.
func NewHistory(store storage.PriceSampleStore, opts HistoryOptions) *History {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultBaselineTolerance
	}
	if opts.ForwardWindow <= 0 {
		opts.ForwardWindow = DefaultForwardWindow
	}
	return &History{store: store, tolerance: opts.Tolerance, forwardWindow: opts.ForwardWindow}
}

// PriceAt returns the price in effect at at: the latest sample within tolerance
// before it, else the earliest sample within tolerance after it.
// Returns ErrPriceUnavailable when neither exists.
func (h *History) PriceAt(ctx context.Context, coin string, at time.Time) (float64, error) {
	target := at.UnixMilli()
	tol := h.tolerance.Milliseconds()

	samples, err := h.store.GetByTimeRange(ctx, coinKey(coin), target-tol, target+tol)
	if err != nil {
		return 0, fmt.Errorf("price samples %s: %w", coin, err)
	}
	s, err := lookup.SampleNearest(target, tol, samples)
	if errors.Is(err, lookup.ErrNoPriceData) {
		return 0, ErrPriceUnavailable
	}
	if err != nil {
		return 0, err
	}
	if s.Price <= 0 {
		return 0, ErrPriceUnavailable
	}
	return s.Price, nil
}

// PriceAfter returns the price of the earliest sample at or after at.
// Returns ErrPriceUnavailable when none exists within the forward window.
func (h *History) PriceAfter(ctx context.Context, coin string, at time.Time) (float64, error) {
	target := at.UnixMilli()

	samples, err := h.store.GetByTimeRange(ctx, coinKey(coin), target, target+h.forwardWindow.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("price samples %s: %w", coin, err)
	}
	s, err := lookup.SampleAtOrAfter(target, samples)
	if errors.Is(err, lookup.ErrNoPriceData) {
		return 0, ErrPriceUnavailable
	}
	if err != nil {
		return 0, err
	}
	if s.Price <= 0 {
		return 0, ErrPriceUnavailable
	}
	return s.Price, nil
}
