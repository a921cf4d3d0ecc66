// Package history derives trailing success statistics per pattern tag from persisted analyses.
package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/pricing"
	"memecoin-signal-lab/internal/storage"
)

// Defaults and thresholds.
const (
	DefaultWindowDays    = 180
	DefaultImpactHorizon = 24 * time.Hour
	SuccessThreshold     = 20.0 // percent
	SignificantThreshold = 50.0 // percent
)

// PriceHistory answers point-in-time price queries.
// Both methods return pricing.ErrPriceUnavailable when no data exists.
type PriceHistory interface {
	PriceAt(ctx context.Context, coin string, at time.Time) (float64, error)
	PriceAfter(ctx context.Context, coin string, at time.Time) (float64, error)
}

// Options configures an Analyzer.
type Options struct {
	// Horizon is the delay between the baseline and the later price. Default 24h.
	Horizon time.Duration
	Logger  *log.Logger
	Now     func() time.Time
}

// Analyzer computes PatternStats and point-in-time price impact.
// Nothing it computes is persisted.
type Analyzer struct {
	analyses storage.AnalysisStore
	prices   PriceHistory
	horizon  time.Duration
	logger   *log.Logger
	now      func() time.Time
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(analyses storage.AnalysisStore, prices PriceHistory, opts Options) *Analyzer {
	if opts.Horizon <= 0 {
		opts.Horizon = DefaultImpactHorizon
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Analyzer{
		analyses: analyses,
		prices:   prices,
		horizon:  opts.Horizon,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// SuccessStats scans analyses tagged with pattern in the trailing window.
// An occurrence is one analysis; it succeeds when any of its coins moved >= 20%
// within the horizon, and its best such move feeds the average return.
// Every coin move >= 50% is reported as a significant event.
// windowDays <= 0 uses DefaultWindowDays.
func (a *Analyzer) SuccessStats(ctx context.Context, pattern string, windowDays int) (*domain.PatternStats, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	end := a.now()
	start := end.AddDate(0, 0, -windowDays)

	results, err := a.analyses.ListByPattern(ctx, pattern, start, end)
	if err != nil {
		return nil, fmt.Errorf("list analyses for %s: %w", pattern, err)
	}

	stats := &domain.PatternStats{
		Pattern:           pattern,
		TotalOccurrences:  len(results),
		SignificantEvents: []domain.SignificantEvent{},
	}

	var successes int
	var totalReturn float64
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		best, succeeded := 0.0, false
		for _, coin := range r.Candidate.Coins {
			impact, ok, err := a.PriceImpact(ctx, coin, r.AnalyzedAt)
			if err != nil {
				a.logger.Printf("[history] price impact %s for %s: %v", coin, r.Post.ID, err)
				continue
			}
			if !ok {
				continue
			}
			if impact >= SuccessThreshold && (!succeeded || impact > best) {
				best, succeeded = impact, true
			}
			if impact >= SignificantThreshold {
				stats.SignificantEvents = append(stats.SignificantEvents, domain.SignificantEvent{
					PostID:      r.Post.ID,
					Coin:        coin,
					PriceImpact: impact,
					Timestamp:   r.AnalyzedAt,
				})
			}
		}
		if succeeded {
			successes++
			totalReturn += best
		}
	}

	if stats.TotalOccurrences > 0 {
		stats.SuccessRate = float64(successes) / float64(stats.TotalOccurrences)
	}
	if successes > 0 {
		stats.AverageReturn = totalReturn / float64(successes)
	}

	sort.SliceStable(stats.SignificantEvents, func(i, j int) bool {
		return stats.SignificantEvents[i].PriceImpact > stats.SignificantEvents[j].PriceImpact
	})

	return stats, nil
}

// PriceImpact returns the percent change between the price at since and the first
// recorded price at least one horizon later. ok is false when either price is
// missing or the baseline is not positive.
func (a *Analyzer) PriceImpact(ctx context.Context, coin string, since time.Time) (float64, bool, error) {
	initial, err := a.prices.PriceAt(ctx, coin, since)
	if errors.Is(err, pricing.ErrPriceUnavailable) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	later, err := a.prices.PriceAfter(ctx, coin, since.Add(a.horizon))
	if errors.Is(err, pricing.ErrPriceUnavailable) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	impact, ok := pricing.PercentChange(initial, later)
	return impact, ok, nil
}
