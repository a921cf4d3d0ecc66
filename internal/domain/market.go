package domain

import "time"

// TokenMetrics is a market snapshot for one coin.
type TokenMetrics struct {
	Price      float64   `json:"price"`
	Volume24h  float64   `json:"volume_24h"`
	MarketCap  float64   `json:"market_cap"`
	Liquidity  float64   `json:"liquidity"`
	ObservedAt time.Time `json:"observed_at"`
}

// PriceSample is a persisted market snapshot used for time-indexed price lookups.
// Corresponds to price_samples table in ClickHouse.
type PriceSample struct {
	Coin        string  // normalized coin identifier
	TimestampMs int64   // Unix timestamp in milliseconds
	Price       float64 // USD
	Volume24h   float64
	MarketCap   float64
	Source      string // provider that produced the sample
}
