package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"memecoin-signal-lab/internal/domain"
)

// DefaultPatterns are the tags reported when none are configured.
var DefaultPatterns = []string{
	domain.PatternAnimalIncident,
	domain.PatternExchangeListing,
	domain.PatternVIPTweet,
	domain.PatternHighConfidence,
}

// StatsSource computes trailing statistics for one pattern.
type StatsSource interface {
	SuccessStats(ctx context.Context, pattern string, windowDays int) (*domain.PatternStats, error)
}

// InfluencerSource ranks tracked authors.
type InfluencerSource interface {
	TopInfluencers(ctx context.Context, limit int) ([]*domain.VipRecord, error)
}

// Generator produces reports from stored analyses and VIP records.
type Generator struct {
	stats       StatsSource
	influencers InfluencerSource
	patterns    []string
	topN        int
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(stats StatsSource, influencers InfluencerSource) *Generator {
	return &Generator{
		stats:       stats,
		influencers: influencers,
		patterns:    DefaultPatterns,
		topN:        10,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithPatterns overrides the reported pattern tags.
func (g *Generator) WithPatterns(patterns []string) *Generator {
	if len(patterns) > 0 {
		g.patterns = patterns
	}
	return g
}

// WithTopInfluencers sets how many authors are listed.
func (g *Generator) WithTopInfluencers(n int) *Generator {
	if n > 0 {
		g.topN = n
	}
	return g
}

// Generate produces a report over the trailing windowDays.
func (g *Generator) Generate(ctx context.Context, windowDays int) (*Report, error) {
	patterns := make([]PatternRow, 0, len(g.patterns))
	for _, p := range g.patterns {
		stats, err := g.stats.SuccessStats(ctx, p, windowDays)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", p, err)
		}
		patterns = append(patterns, patternRow(stats))
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].SuccessRate != patterns[j].SuccessRate {
			return patterns[i].SuccessRate > patterns[j].SuccessRate
		}
		return patterns[i].Pattern < patterns[j].Pattern
	})

	var influencers []InfluencerRow
	if g.influencers != nil {
		records, err := g.influencers.TopInfluencers(ctx, g.topN)
		if err != nil {
			return nil, fmt.Errorf("top influencers: %w", err)
		}
		for _, r := range records {
			influencers = append(influencers, InfluencerRow{
				Handle:         r.Handle,
				InfluenceScore: r.InfluenceScore,
				CoinsCount:     len(r.CoinsInfluenced),
				LastUpdated:    r.UpdatedAt,
			})
		}
	}

	return &Report{
		GeneratedAt: g.now(),
		WindowDays:  windowDays,
		Patterns:    patterns,
		Influencers: influencers,
	}, nil
}

// patternRow flattens stats. SignificantEvents arrive sorted by impact descending.
func patternRow(s *domain.PatternStats) PatternRow {
	row := PatternRow{
		Pattern:          s.Pattern,
		Occurrences:      s.TotalOccurrences,
		SuccessRate:      s.SuccessRate,
		AverageReturn:    s.AverageReturn,
		SignificantCount: len(s.SignificantEvents),
	}
	if len(s.SignificantEvents) > 0 {
		row.BestImpact = s.SignificantEvents[0].PriceImpact
		row.BestCoin = s.SignificantEvents[0].Coin
	}
	return row
}
