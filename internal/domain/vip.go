package domain

import "time"

// PlatformTwitter is the only platform tracked today.
const PlatformTwitter = "twitter"

// Influence score bounds and seeds.
const (
	InfluenceScoreMax        = 100.0
	InfluenceScoreMin        = 0.0
	InfluenceScoreDiscovered = 50.0  // first outcome recorded for an unknown author
	InfluenceScoreSeeded     = 100.0 // pre-configured VIPs
)

// VipRecord is the reputation kept per author handle.
type VipRecord struct {
	Handle          string    `json:"handle"` // lower-cased key
	Platform        string    `json:"platform"`
	InfluenceScore  float64   `json:"influence_score"`
	CoinsInfluenced []string  `json:"coins_influenced"` // set semantics
	UpdatedAt       time.Time `json:"updated_at"`
	Version         int64     `json:"-"` // optimistic concurrency token, store-managed
}

// Clone returns a deep copy.
func (v *VipRecord) Clone() *VipRecord {
	if v == nil {
		return nil
	}
	c := *v
	c.CoinsInfluenced = append([]string(nil), v.CoinsInfluenced...)
	return &c
}

// InfluenceDelta is the score reward for an observed price impact (percent).
func InfluenceDelta(priceImpact float64) float64 {
	switch {
	case priceImpact > 100:
		return 10
	case priceImpact > 50:
		return 5
	default:
		return 0
	}
}
