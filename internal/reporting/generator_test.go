package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memecoin-signal-lab/internal/domain"
)

type fixedStats map[string]*domain.PatternStats

func (f fixedStats) SuccessStats(_ context.Context, pattern string, _ int) (*domain.PatternStats, error) {
	if s, ok := f[pattern]; ok {
		return s, nil
	}
	return &domain.PatternStats{Pattern: pattern, SignificantEvents: []domain.SignificantEvent{}}, nil
}

type failingStats struct{}

func (failingStats) SuccessStats(context.Context, string, int) (*domain.PatternStats, error) {
	return nil, errors.New("store down")
}

type fixedInfluencers []*domain.VipRecord

func (f fixedInfluencers) TopInfluencers(_ context.Context, limit int) ([]*domain.VipRecord, error) {
	if limit < len(f) {
		return f[:limit], nil
	}
	return f, nil
}

var fixedTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testGenerator() *Generator {
	stats := fixedStats{
		domain.PatternAnimalIncident: {
			Pattern:          domain.PatternAnimalIncident,
			SuccessRate:      0.5,
			AverageReturn:    35,
			TotalOccurrences: 4,
			SignificantEvents: []domain.SignificantEvent{
				{PostID: "p1", Coin: "WIF", PriceImpact: 120},
				{PostID: "p2", Coin: "BONK", PriceImpact: 60},
			},
		},
		domain.PatternVIPTweet: {
			Pattern:           domain.PatternVIPTweet,
			SuccessRate:       0.75,
			AverageReturn:     22,
			TotalOccurrences:  8,
			SignificantEvents: []domain.SignificantEvent{},
		},
	}
	vips := fixedInfluencers{
		{Handle: "elonmusk", InfluenceScore: 100, CoinsInfluenced: []string{"DOGE"}, UpdatedAt: fixedTime},
		{Handle: "newauthor", InfluenceScore: 55, UpdatedAt: fixedTime},
	}
	return NewGenerator(stats, vips).WithClock(func() time.Time { return fixedTime })
}

func TestGenerate_SortsPatternsBySuccessRate(t *testing.T) {
	r, err := testGenerator().Generate(context.Background(), 180)
	require.NoError(t, err)

	require.Len(t, r.Patterns, len(DefaultPatterns))
	assert.Equal(t, domain.PatternVIPTweet, r.Patterns[0].Pattern)
	assert.Equal(t, domain.PatternAnimalIncident, r.Patterns[1].Pattern)
	// Zero-rate rows fall back to name order.
	assert.Equal(t, domain.PatternExchangeListing, r.Patterns[2].Pattern)
	assert.Equal(t, domain.PatternHighConfidence, r.Patterns[3].Pattern)

	animal := r.Patterns[1]
	assert.Equal(t, 2, animal.SignificantCount)
	assert.Equal(t, 120.0, animal.BestImpact)
	assert.Equal(t, "WIF", animal.BestCoin)

	assert.Equal(t, 180, r.WindowDays)
	assert.Equal(t, fixedTime, r.GeneratedAt)
	require.Len(t, r.Influencers, 2)
	assert.Equal(t, 1, r.Influencers[0].CoinsCount)
}

func TestGenerate_CustomPatternsAndLimit(t *testing.T) {
	g := testGenerator().WithPatterns([]string{"vip_tweet"}).WithTopInfluencers(1)

	r, err := g.Generate(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, r.Patterns, 1)
	assert.Len(t, r.Influencers, 1)
}

func TestGenerate_StatsError(t *testing.T) {
	_, err := NewGenerator(failingStats{}, nil).Generate(context.Background(), 30)
	assert.Error(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	r, err := testGenerator().Generate(context.Background(), 180)
	require.NoError(t, err)

	md := RenderMarkdown(r)
	assert.True(t, strings.HasPrefix(md, "# Pattern Performance Report"))
	assert.Contains(t, md, "Generated: 2024-06-01T12:00:00Z")
	assert.Contains(t, md, "| animal_incident | 4 | 0.50 | 35.00 | 2 | 120.00 | WIF |")
	assert.Contains(t, md, "| exchange_listing | 0 | 0.00 | 0.00 | 0 | 0.00 | - |")
	assert.Contains(t, md, "| elonmusk | 100.0 | 1 |")

	empty := RenderMarkdown(&Report{GeneratedAt: fixedTime})
	assert.Contains(t, empty, "No patterns configured.")
	assert.Contains(t, empty, "No tracked influencers.")
}

func TestRenderMarkdown_Deterministic(t *testing.T) {
	r1, _ := testGenerator().Generate(context.Background(), 180)
	r2, _ := testGenerator().Generate(context.Background(), 180)
	assert.Equal(t, RenderMarkdown(r1), RenderMarkdown(r2))
}

func TestRenderCSV(t *testing.T) {
	csv := RenderCSV([]PatternRow{
		{Pattern: "vip_tweet", Occurrences: 8, SuccessRate: 0.75, AverageReturn: 22},
	})
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "pattern,occurrences,success_rate,average_return,significant_count,best_impact,best_coin", lines[0])
	assert.Equal(t, "vip_tweet,8,0.750000,22.000000,0,0.000000,", lines[1])
}
