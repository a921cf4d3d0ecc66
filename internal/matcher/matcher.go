// Package matcher turns a post into candidate coin names and a base confidence.
package matcher

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/inference"
	"memecoin-signal-lab/internal/observability"
	"memecoin-signal-lab/internal/pricing"
	"memecoin-signal-lab/internal/quickfilter"
)

// Defaults.
const (
	DefaultInferenceTimeout = 10 * time.Second
	QuickFilterConfidence   = 50.0
	QuickFilterReasoning    = "Quick filter match only"
	HighConfidenceTag       = 80.0

	minNameLen = 3
	maxNameLen = 20
)

// Options configures a Matcher.
type Options struct {
	Filter           *quickfilter.Filter
	InferenceTimeout time.Duration
	Logger           *log.Logger
}

// Matcher combines the quick filter with the inference gateway.
// Safe for concurrent use.
type Matcher struct {
	gateway inference.Gateway
	filter  *quickfilter.Filter
	timeout time.Duration
	logger  *log.Logger
}

// New creates a Matcher.
func New(gateway inference.Gateway, opts Options) *Matcher {
	if opts.Filter == nil {
		opts.Filter = quickfilter.New(quickfilter.Options{})
	}
	if opts.InferenceTimeout <= 0 {
		opts.InferenceTimeout = DefaultInferenceTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Matcher{
		gateway: gateway,
		filter:  opts.Filter,
		timeout: opts.InferenceTimeout,
		logger:  opts.Logger,
	}
}

// Analyze produces the candidate analysis for a post.
// Posts the quick filter rejects never reach the gateway. Once the gateway is
// called, any failure is returned as an *inference.Error with no fallback.
func (m *Matcher) Analyze(ctx context.Context, post domain.Post, image *domain.ImageAnalysis) (*domain.CandidateAnalysis, error) {
	qf := m.filter.Evaluate(post.Content, post.Author, post.Engagement)

	if !qf.NeedsDeepAnalysis {
		return &domain.CandidateAnalysis{
			Coins:      []string{},
			Reasoning:  QuickFilterReasoning,
			Confidence: QuickFilterConfidence,
			Category:   domain.CategoryOther,
			Patterns:   dedupe(qf.Patterns),
		}, nil
	}

	prompt := inference.BuildPrompt(post, image)

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	text, err := m.gateway.Complete(callCtx, prompt)
	observability.RecordInference(time.Since(start).Seconds(), err)
	if err != nil {
		m.logger.Printf("[matcher] inference failed for post %s: %v", post.ID, err)
		return nil, inference.Wrap("complete", err)
	}

	resp, err := inference.ParseResponse(text)
	if err != nil {
		m.logger.Printf("[matcher] unusable inference response for post %s: %v", post.ID, err)
		return nil, inference.Wrap("parse", err)
	}

	patterns := append([]string(nil), qf.Patterns...)
	if resp.Category == domain.CategoryVIPRelated {
		patterns = append(patterns, domain.PatternVIPTweet)
	}
	if resp.Confidence >= HighConfidenceTag {
		patterns = append(patterns, domain.PatternHighConfidence)
	}

	names := append(append([]string(nil), resp.Names...), pricing.ExtractMints(post.Content)...)

	return &domain.CandidateAnalysis{
		Coins:        NormalizeNames(names),
		Reasoning:    resp.Reasoning,
		Confidence:   resp.Confidence,
		Category:     resp.Category,
		Patterns:     dedupe(patterns),
		DeepAnalysis: true,
	}, nil
}

// NormalizeNames strips every non-alphanumeric rune, upper-cases, keeps names of
// 3 to 20 characters and removes duplicates preserving first occurrence.
// Solana mint addresses are kept verbatim since base58 is case-sensitive.
func NormalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, raw := range names {
		if c := pricing.ParseCoin(raw); c.Kind == pricing.CoinMint {
			if _, dup := seen[c.Raw]; !dup {
				seen[c.Raw] = struct{}{}
				out = append(out, c.Raw)
			}
			continue
		}

		var b strings.Builder
		for _, r := range raw {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				b.WriteRune(unicode.ToUpper(r))
			}
		}
		name := b.String()
		if len(name) < minNameLen || len(name) > maxNameLen {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
