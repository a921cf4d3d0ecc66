package domain

import "time"

// Category classifies what kind of moment a post describes.
type Category string

// Category values recognised by the pattern matcher.
const (
	CategoryViralMoment       Category = "viral_moment"
	CategoryVIPRelated        Category = "vip_related"
	CategoryCulturalReference Category = "cultural_reference"
	CategoryExchangeListing   Category = "exchange_listing"
	CategoryAnimalIncident    Category = "animal_incident"
	CategoryOther             Category = "other"
)

// ParseCategory maps free text onto a known category.
// Unrecognised values map to CategoryOther.
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategoryViralMoment, CategoryVIPRelated, CategoryCulturalReference,
		CategoryExchangeListing, CategoryAnimalIncident, CategoryOther:
		return c
	default:
		return CategoryOther
	}
}

// Pattern tags emitted by the quick filter and the matcher.
const (
	PatternAnimalIncident  = "animal_incident"
	PatternExchangeListing = "exchange_listing"
	PatternVIPTweet        = "vip_tweet"
	PatternHighConfidence  = "high_confidence"
)

// CandidateAnalysis is the pattern matcher output for one post.
type CandidateAnalysis struct {
	Coins        []string `json:"coins"`         // normalized, de-duplicated
	Reasoning    string   `json:"reasoning"`     // free text from the gateway
	Confidence   float64  `json:"confidence"`    // base confidence in [0,100]
	Category     Category `json:"category"`      // never empty
	Patterns     []string `json:"patterns"`      // de-duplicated tags
	DeepAnalysis bool     `json:"deep_analysis"` // true if the inference gateway was called
}

// HasPattern reports whether tag is among the matched patterns.
func (c *CandidateAnalysis) HasPattern(tag string) bool {
	for _, p := range c.Patterns {
		if p == tag {
			return true
		}
	}
	return false
}

// SignificantEvent is one historical occurrence with price impact >= 50%.
type SignificantEvent struct {
	PostID      string    `json:"post_id"`
	Coin        string    `json:"coin"`
	PriceImpact float64   `json:"price_impact"`
	Timestamp   time.Time `json:"timestamp"`
}

// PatternStats summarises trailing outcomes for one pattern tag.
// Derived on every query; never stored on its own.
type PatternStats struct {
	Pattern           string             `json:"pattern"`
	SuccessRate       float64            `json:"success_rate"`
	AverageReturn     float64            `json:"average_return"`
	TotalOccurrences  int                `json:"total_occurrences"`
	SignificantEvents []SignificantEvent `json:"significant_events"`
}

// CoinMetrics pairs a coin name with the market snapshot taken during analysis.
// Momentum is set when the snapshot cleared the volume and market cap floors.
type CoinMetrics struct {
	Coin     string        `json:"coin"`
	Metrics  *TokenMetrics `json:"metrics"`
	Momentum bool          `json:"momentum"`
}

// FinalAnalysisResult is the unit persisted per analyzed post and returned to callers.
type FinalAnalysisResult struct {
	AnalysisID        string            `json:"analysis_id"`
	Post              Post              `json:"post"`
	Image             *ImageAnalysis    `json:"image,omitempty"`
	Candidate         CandidateAnalysis `json:"candidate"`
	Confidence        float64           `json:"confidence"` // adjusted, in [0,100]
	Vip               *VipRecord        `json:"vip,omitempty"`
	PatternStats      []PatternStats    `json:"pattern_stats"`
	Metrics           []CoinMetrics     `json:"metrics,omitempty"`
	GraphEdges        []GraphEdge       `json:"graph_edges,omitempty"`
	RelatedEvents     []GraphEdge       `json:"related_events,omitempty"` // earlier INFLUENCED edges into the same coins
	FollowUpScheduled bool              `json:"follow_up_scheduled"`
	AnalyzedAt        time.Time         `json:"analyzed_at"`
}

// Clone returns a deep copy.
func (r *FinalAnalysisResult) Clone() *FinalAnalysisResult {
	c := *r
	c.Post.MediaURLs = append([]string(nil), r.Post.MediaURLs...)
	if r.Image != nil {
		img := *r.Image
		c.Image = &img
	}
	c.Candidate.Coins = append([]string(nil), r.Candidate.Coins...)
	c.Candidate.Patterns = append([]string(nil), r.Candidate.Patterns...)
	c.Vip = r.Vip.Clone()
	c.PatternStats = make([]PatternStats, len(r.PatternStats))
	for i, ps := range r.PatternStats {
		ps.SignificantEvents = append([]SignificantEvent(nil), ps.SignificantEvents...)
		c.PatternStats[i] = ps
	}
	c.Metrics = make([]CoinMetrics, len(r.Metrics))
	for i, m := range r.Metrics {
		if m.Metrics != nil {
			tm := *m.Metrics
			m.Metrics = &tm
		}
		c.Metrics[i] = m
	}
	c.GraphEdges = append([]GraphEdge(nil), r.GraphEdges...)
	c.RelatedEvents = append([]GraphEdge(nil), r.RelatedEvents...)
	return &c
}
