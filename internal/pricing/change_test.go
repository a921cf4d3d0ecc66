package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"memecoin-signal-lab/internal/domain"
)

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name    string
		initial float64
		final   float64
		want    float64
		wantOK  bool
	}{
		{"doubling", 1, 2, 100, true},
		{"drop", 2, 1, -50, true},
		{"flat", 0.5, 0.5, 0, true},
		{"tiny prices", 0.000001, 0.0000015, 50, true},
		{"zero baseline", 0, 1, 0, false},
		{"negative baseline", -1, 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PercentChange(tt.initial, tt.final)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestHasMomentum(t *testing.T) {
	assert.False(t, HasMomentum(nil, DefaultMomentumVolume, DefaultMomentumMarketCap))
	assert.True(t, HasMomentum(&domain.TokenMetrics{Volume24h: 100_000, MarketCap: 1_000_000},
		DefaultMomentumVolume, DefaultMomentumMarketCap))
	assert.False(t, HasMomentum(&domain.TokenMetrics{Volume24h: 99_999, MarketCap: 5_000_000},
		DefaultMomentumVolume, DefaultMomentumMarketCap))
}
