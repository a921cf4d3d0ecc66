// Package scoring adjusts a base confidence with VIP and historical boosts.
package scoring

import (
	"fmt"
	"math"

	"memecoin-signal-lab/internal/domain"
)

// Boost weights.
const (
	VipWeight        = 20.0 // applied to influence score / 100
	HistoricalWeight = 15.0 // applied to each pattern's success rate
	MaxScore         = 100.0
	MinScore         = 0.0
)

// Breakdown is the itemised adjustment for one analysis.
type Breakdown struct {
	Base            float64
	VipBoost        float64
	HistoricalBoost float64
	Final           float64
}

func (b Breakdown) String() string {
	return fmt.Sprintf("base=%.2f vip=+%.2f historical=+%.2f final=%.2f",
		b.Base, b.VipBoost, b.HistoricalBoost, b.Final)
}

// Score returns the adjusted confidence in [0, 100].
func Score(base float64, vip *domain.VipRecord, stats []domain.PatternStats) float64 {
	return Explain(base, vip, stats).Final
}

// Explain computes the adjusted confidence and its components.
// Per-pattern boosts add up without renormalisation.
func Explain(base float64, vip *domain.VipRecord, stats []domain.PatternStats) Breakdown {
	b := Breakdown{Base: base}
	if vip != nil {
		b.VipBoost = vip.InfluenceScore / 100 * VipWeight
	}
	for _, s := range stats {
		b.HistoricalBoost += s.SuccessRate * HistoricalWeight
	}
	b.Final = clamp(base + b.VipBoost + b.HistoricalBoost)
	return b
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return MinScore
	}
	return math.Max(MinScore, math.Min(MaxScore, v))
}
