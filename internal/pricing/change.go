package pricing

import "github.com/shopspring/decimal"

// PercentChange returns (final-initial)/initial*100. ok is false when initial <= 0.
// Computed in decimal so tiny memecoin prices do not lose precision.
func PercentChange(initial, final float64) (float64, bool) {
	if initial <= 0 {
		return 0, false
	}
	i := decimal.NewFromFloat(initial)
	f := decimal.NewFromFloat(final)
	pct, _ := f.Sub(i).Div(i).Mul(decimal.NewFromInt(100)).Float64()
	return pct, true
}
