package scoring

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"memecoin-signal-lab/internal/domain"
)

func TestScore_SeededVipWithHistory(t *testing.T) {
	vip := &domain.VipRecord{Handle: "elonmusk", InfluenceScore: 100}
	stats := []domain.PatternStats{{Pattern: domain.PatternAnimalIncident, SuccessRate: 0.5}}

	b := Explain(60, vip, stats)
	assert.InDelta(t, 20.0, b.VipBoost, 1e-9)
	assert.InDelta(t, 7.5, b.HistoricalBoost, 1e-9)
	assert.InDelta(t, 87.5, b.Final, 1e-9)
	assert.InDelta(t, 87.5, Score(60, vip, stats), 1e-9)
}

func TestScore_UntrackedAuthorNoPatterns(t *testing.T) {
	assert.Equal(t, 40.0, Score(40, nil, nil))
}

func TestScore_BoostsAreAdditive(t *testing.T) {
	stats := []domain.PatternStats{
		{Pattern: "a", SuccessRate: 1},
		{Pattern: "b", SuccessRate: 1},
		{Pattern: "c", SuccessRate: 0.2},
	}
	b := Explain(10, nil, stats)
	assert.InDelta(t, 33.0, b.HistoricalBoost, 1e-9)
	assert.InDelta(t, 43.0, b.Final, 1e-9)
}

func TestScore_Clamped(t *testing.T) {
	vip := &domain.VipRecord{InfluenceScore: 100}
	stats := []domain.PatternStats{{SuccessRate: 1}, {SuccessRate: 1}}
	assert.Equal(t, 100.0, Score(95, vip, stats))
	assert.Equal(t, 0.0, Score(-30, nil, nil))
}

func TestScore_AlwaysInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("score stays within [0, 100]", prop.ForAll(
		func(base, influence float64, rates []float64, tracked bool) bool {
			var vip *domain.VipRecord
			if tracked {
				vip = &domain.VipRecord{InfluenceScore: influence}
			}
			stats := make([]domain.PatternStats, len(rates))
			for i, r := range rates {
				stats[i] = domain.PatternStats{SuccessRate: r}
			}
			s := Score(base, vip, stats)
			return s >= 0 && s <= 100
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.Bool(),
	))

	properties.Property("boosts never lower the base", prop.ForAll(
		func(base, influence float64, rate float64) bool {
			vip := &domain.VipRecord{InfluenceScore: influence}
			return Score(base, vip, []domain.PatternStats{{SuccessRate: rate}}) >= base
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
