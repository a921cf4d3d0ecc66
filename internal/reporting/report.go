package reporting

import "time"

// Report summarises how detected patterns and tracked authors have performed.
type Report struct {
	GeneratedAt time.Time
	WindowDays  int

	// Pattern rows sorted by success rate descending, then pattern name.
	Patterns []PatternRow

	// Influencer rows sorted by score descending.
	Influencers []InfluencerRow
}

// PatternRow is one pattern's trailing statistics.
type PatternRow struct {
	Pattern          string
	Occurrences      int
	SuccessRate      float64 // [0,1]
	AverageReturn    float64 // percent
	SignificantCount int
	BestImpact       float64 // percent, 0 when no significant events
	BestCoin         string
}

// InfluencerRow is one tracked author.
type InfluencerRow struct {
	Handle         string
	InfluenceScore float64
	CoinsCount     int
	LastUpdated    time.Time
}
