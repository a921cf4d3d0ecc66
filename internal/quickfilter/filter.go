// Package quickfilter decides cheaply whether a post deserves deep analysis.
package quickfilter

import (
	"strings"

	"memecoin-signal-lab/internal/domain"
)

// Default engagement thresholds; a post above either is analyzed even without tags.
const (
	DefaultLikesThreshold    = 5000
	DefaultRetweetsThreshold = 1000
)

var (
	animalKeywords = []string{
		"rescue", "hurt", "injured", "save", "pet",
		"animal", "dog", "cat", "bird", "squirrel",
	}

	majorExchanges = map[string]struct{}{
		"binance":  {},
		"coinbase": {},
	}

	exchangeKeywords = []string{
		"listing", "listed", "trading", "support", "launches", "add", "lists",
	}
)

// Result is the outcome of a quick filter pass.
type Result struct {
	Patterns          []string
	NeedsDeepAnalysis bool
}

// Filter is a pure keyword and engagement filter. Safe for concurrent use.
type Filter struct {
	likesThreshold    int64
	retweetsThreshold int64
}

// Options configures a Filter. Zero values use defaults.
type Options struct {
	LikesThreshold    int64
	RetweetsThreshold int64
}

// New creates a Filter.
func New(opts Options) *Filter {
	if opts.LikesThreshold <= 0 {
		opts.LikesThreshold = DefaultLikesThreshold
	}
	if opts.RetweetsThreshold <= 0 {
		opts.RetweetsThreshold = DefaultRetweetsThreshold
	}
	return &Filter{
		likesThreshold:    opts.LikesThreshold,
		retweetsThreshold: opts.RetweetsThreshold,
	}
}

// Evaluate tags the post text and decides whether the inference gateway is needed.
// Substring matching is intentional: "cat" matches "catastrophe".
func (f *Filter) Evaluate(text, author string, engagement domain.Engagement) Result {
	lower := strings.ToLower(text)
	var patterns []string

	if containsAny(lower, animalKeywords) {
		patterns = append(patterns, domain.PatternAnimalIncident)
	}

	if _, ok := majorExchanges[strings.ToLower(author)]; ok && containsAny(lower, exchangeKeywords) {
		patterns = append(patterns, domain.PatternExchangeListing)
	}

	return Result{
		Patterns: patterns,
		NeedsDeepAnalysis: len(patterns) > 0 ||
			engagement.Likes > f.likesThreshold ||
			engagement.Retweets > f.retweetsThreshold,
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
