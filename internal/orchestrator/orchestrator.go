// Package orchestrator is the per-post entry point.
// It coordinates: matcher → parallel lookups → scoring → side effects
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/idhash"
	"memecoin-signal-lab/internal/observability"
	"memecoin-signal-lab/internal/pricing"
	"memecoin-signal-lab/internal/scoring"
	"memecoin-signal-lab/internal/signal"
	"memecoin-signal-lab/internal/storage"
)

// Confidence levels.
const (
	DefaultHighThreshold   = 70.0 // publish signal
	DefaultMediumThreshold = 50.0 // schedule follow-up
)

// Default limits.
const (
	DefaultLookupTimeout      = 10 * time.Second
	DefaultRelatedEventsLimit = 10
	maxParallelLookups        = 8
)

// Matcher turns a post into a candidate analysis.
type Matcher interface {
	Analyze(ctx context.Context, post domain.Post, image *domain.ImageAnalysis) (*domain.CandidateAnalysis, error)
}

// InfluenceReader reads VIP reputation. Returns (nil, nil) for untracked authors.
type InfluenceReader interface {
	GetInfluence(ctx context.Context, handle string) (*domain.VipRecord, error)
}

// StatsProvider computes trailing statistics for a pattern tag.
type StatsProvider interface {
	SuccessStats(ctx context.Context, pattern string, windowDays int) (*domain.PatternStats, error)
}

// FollowUpScheduler creates and reports follow-up tasks.
type FollowUpScheduler interface {
	Schedule(ctx context.Context, postID string, coins []string, author string) error
	Status(ctx context.Context, postID string) (*domain.FollowUpTask, error)
}

// Options configures an Orchestrator. Matcher is required; any other nil
// dependency disables the step it serves.
type Options struct {
	Matcher   Matcher
	Vip       InfluenceReader
	History   StatsProvider
	Prices    pricing.Provider
	Graph     storage.GraphStore
	Analyses  storage.AnalysisStore
	FollowUps FollowUpScheduler
	Publisher signal.Publisher

	ScheduleThreshold  float64 // default DefaultMediumThreshold
	SignalThreshold    float64 // default DefaultHighThreshold
	WindowDays         int     // passed to SuccessStats; <= 0 uses its default
	LookupTimeout      time.Duration
	RelatedEventsLimit int

	Logger *log.Logger
	Now    func() time.Time
	NewID  func() string
}

// Orchestrator runs the full analysis for one post. Safe for concurrent use.
type Orchestrator struct {
	matcher   Matcher
	vip       InfluenceReader
	history   StatsProvider
	prices    pricing.Provider
	graph     storage.GraphStore
	analyses  storage.AnalysisStore
	followUps FollowUpScheduler
	publisher signal.Publisher

	scheduleThreshold  float64
	signalThreshold    float64
	windowDays         int
	lookupTimeout      time.Duration
	relatedEventsLimit int

	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.ScheduleThreshold <= 0 {
		opts.ScheduleThreshold = DefaultMediumThreshold
	}
	if opts.SignalThreshold <= 0 {
		opts.SignalThreshold = DefaultHighThreshold
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	if opts.RelatedEventsLimit <= 0 {
		opts.RelatedEventsLimit = DefaultRelatedEventsLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Orchestrator{
		matcher:            opts.Matcher,
		vip:                opts.Vip,
		history:            opts.History,
		prices:             opts.Prices,
		graph:              opts.Graph,
		analyses:           opts.Analyses,
		followUps:          opts.FollowUps,
		publisher:          opts.Publisher,
		scheduleThreshold:  opts.ScheduleThreshold,
		signalThreshold:    opts.SignalThreshold,
		windowDays:         opts.WindowDays,
		lookupTimeout:      opts.LookupTimeout,
		relatedEventsLimit: opts.RelatedEventsLimit,
		logger:             opts.Logger,
		now:                opts.Now,
		newID:              opts.NewID,
	}
}

// Analyze runs matcher, lookups, scoring and side effects for post.
// Only matcher (inference) errors are returned; lookup and side-effect failures
// are logged and degrade the result.
func (o *Orchestrator) Analyze(ctx context.Context, post domain.Post, image *domain.ImageAnalysis) (*domain.FinalAnalysisResult, error) {
	start := time.Now()

	candidate, err := o.matcher.Analyze(ctx, post, image)
	if err != nil {
		observability.RecordAnalysis(time.Since(start).Seconds(), err, 0)
		return nil, fmt.Errorf("analyze post %s: %w", post.ID, err)
	}

	result := &domain.FinalAnalysisResult{
		AnalysisID:   o.newID(),
		Post:         post,
		Image:        image,
		Candidate:    *candidate,
		PatternStats: []domain.PatternStats{},
		AnalyzedAt:   o.now().UTC(),
	}

	o.lookup(ctx, result)

	breakdown := scoring.Explain(candidate.Confidence, result.Vip, result.PatternStats)
	result.Confidence = breakdown.Final
	observability.RecordAdjustedScore(result.Confidence)

	o.writeGraph(ctx, result)
	o.scheduleFollowUp(ctx, result)
	o.persist(ctx, result)
	o.publish(ctx, result)

	o.logger.Printf("[orchestrator] post %s by %s: coins=%v patterns=%v %s",
		post.ID, post.Author, candidate.Coins, candidate.Patterns, breakdown)
	observability.RecordAnalysis(time.Since(start).Seconds(), nil, o.now().Unix())

	return result, nil
}

// lookup gathers VIP reputation, per-pattern stats, market snapshots and related
// graph events in parallel. Each goroutine owns its slot in the result.
func (o *Orchestrator) lookup(ctx context.Context, result *domain.FinalAnalysisResult) {
	var g errgroup.Group
	g.SetLimit(maxParallelLookups)

	post := result.Post
	patterns := result.Candidate.Patterns
	coins := result.Candidate.Coins

	if o.vip != nil {
		g.Go(func() error {
			rec, err := o.vip.GetInfluence(ctx, post.Author)
			if err != nil {
				o.logger.Printf("[orchestrator] vip lookup %s: %v", post.Author, err)
				return nil
			}
			result.Vip = rec
			return nil
		})
	}

	stats := make([]*domain.PatternStats, len(patterns))
	if o.history != nil {
		for i, pattern := range patterns {
			g.Go(func() error {
				s, err := o.history.SuccessStats(ctx, pattern, o.windowDays)
				if err != nil {
					o.logger.Printf("[orchestrator] stats %s: %v", pattern, err)
					return nil
				}
				stats[i] = s
				return nil
			})
		}
	}

	metrics := make([]*domain.TokenMetrics, len(coins))
	if o.prices != nil {
		for i, coin := range coins {
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(ctx, o.lookupTimeout)
				defer cancel()
				m, err := o.prices.Metrics(callCtx, coin)
				if err != nil {
					if !errors.Is(err, pricing.ErrPriceUnavailable) {
						o.logger.Printf("[orchestrator] metrics %s: %v", coin, err)
					}
					return nil
				}
				metrics[i] = m
				return nil
			})
		}
	}

	related := make([][]*domain.GraphEdge, len(coins))
	if o.graph != nil {
		for i, coin := range coins {
			g.Go(func() error {
				edges, err := o.graph.EdgesTo(ctx, domain.EdgeInfluenced, domain.NodeMemecoin, coin, o.relatedEventsLimit)
				if err != nil {
					o.logger.Printf("[orchestrator] related events %s: %v", coin, err)
					return nil
				}
				related[i] = edges
				return nil
			})
		}
	}

	_ = g.Wait()

	for _, s := range stats {
		if s != nil {
			result.PatternStats = append(result.PatternStats, *s)
		}
	}
	for i, m := range metrics {
		if m != nil {
			result.Metrics = append(result.Metrics, domain.CoinMetrics{
				Coin:     coins[i],
				Metrics:  m,
				Momentum: pricing.HasMomentum(m, pricing.DefaultMomentumVolume, pricing.DefaultMomentumMarketCap),
			})
		}
	}
	for _, edges := range related {
		for _, e := range edges {
			result.RelatedEvents = append(result.RelatedEvents, *e)
		}
	}
}

// writeGraph merges the account, post, event and coin nodes and their edges.
// A failed merge skips only the edges that depend on it.
func (o *Orchestrator) writeGraph(ctx context.Context, result *domain.FinalAnalysisResult) {
	if o.graph == nil {
		return
	}
	post := result.Post
	createdAt := result.AnalyzedAt.UnixMilli()

	mergeNode := func(label domain.NodeLabel, id string, props map[string]string) bool {
		err := o.graph.MergeNode(ctx, &domain.GraphNode{Label: label, ID: id, Properties: props, CreatedAt: createdAt})
		if err != nil {
			observability.RecordSideEffectError("graph")
			o.logger.Printf("[orchestrator] graph node %s/%s: %v", label, id, err)
			return false
		}
		return true
	}
	mergeEdge := func(t domain.EdgeType, fromLabel domain.NodeLabel, fromID string, toLabel domain.NodeLabel, toID string) {
		e := domain.GraphEdge{Type: t, FromLabel: fromLabel, FromID: fromID, ToLabel: toLabel, ToID: toID, CreatedAt: createdAt}
		if err := o.graph.MergeEdge(ctx, &e); err != nil {
			observability.RecordSideEffectError("graph")
			o.logger.Printf("[orchestrator] graph edge %s %s->%s: %v", t, fromID, toID, err)
			return
		}
		result.GraphEdges = append(result.GraphEdges, e)
	}

	postOK := mergeNode(domain.NodePost, post.ID, map[string]string{
		"content":  post.Content,
		"url":      post.URL,
		"author":   post.Author,
		"likes":    strconv.FormatInt(post.Engagement.Likes, 10),
		"retweets": strconv.FormatInt(post.Engagement.Retweets, 10),
	})
	if !postOK {
		return
	}
	if mergeNode(domain.NodeAccount, post.Author, map[string]string{"handle": post.Author}) {
		mergeEdge(domain.EdgePosted, domain.NodeAccount, post.Author, domain.NodePost, post.ID)
	}

	coinOK := make(map[string]bool, len(result.Candidate.Coins))
	for _, coin := range result.Candidate.Coins {
		coinOK[coin] = mergeNode(domain.NodeMemecoin, coin, map[string]string{"symbol": coin})
	}

	for _, pattern := range result.Candidate.Patterns {
		eventID := idhash.ComputeEventID(pattern, post.ID)
		ok := mergeNode(domain.NodeEvent, eventID, map[string]string{
			"type":             pattern,
			"initial_tweet_id": post.ID,
			"status":           "active",
		})
		if !ok {
			continue
		}
		mergeEdge(domain.EdgeInitiated, domain.NodePost, post.ID, domain.NodeEvent, eventID)
		for _, coin := range result.Candidate.Coins {
			if coinOK[coin] {
				mergeEdge(domain.EdgeInfluenced, domain.NodeEvent, eventID, domain.NodeMemecoin, coin)
			}
		}
	}
}

func (o *Orchestrator) scheduleFollowUp(ctx context.Context, result *domain.FinalAnalysisResult) {
	if o.followUps == nil || result.Confidence < o.scheduleThreshold || len(result.Candidate.Coins) == 0 {
		return
	}
	if err := o.followUps.Schedule(ctx, result.Post.ID, result.Candidate.Coins, result.Post.Author); err != nil {
		observability.RecordSideEffectError("followup")
		o.logger.Printf("[orchestrator] schedule follow-up %s: %v", result.Post.ID, err)
		return
	}
	result.FollowUpScheduled = true
}

func (o *Orchestrator) persist(ctx context.Context, result *domain.FinalAnalysisResult) {
	if o.analyses == nil {
		return
	}
	if err := o.analyses.Insert(ctx, result); err != nil {
		observability.RecordSideEffectError("persist")
		o.logger.Printf("[orchestrator] persist analysis %s: %v", result.AnalysisID, err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, result *domain.FinalAnalysisResult) {
	if result.Confidence < o.signalThreshold {
		return
	}
	var vipHandle string
	if result.Vip != nil {
		vipHandle = result.Vip.Handle
	}
	o.logger.Printf("[orchestrator] high confidence signal: post=%s coins=%v patterns=%v confidence=%.2f vip=%q url=%s",
		result.Post.ID, result.Candidate.Coins, result.Candidate.Patterns, result.Confidence, vipHandle, result.Post.URL)

	if o.publisher == nil {
		return
	}
	err := o.publisher.Publish(ctx, result)
	observability.RecordSignalPublished(err)
	if err != nil {
		observability.RecordSideEffectError("signal")
		o.logger.Printf("[orchestrator] publish signal %s: %v", result.Post.ID, err)
	}
}

// AnalysisStatus pairs the stored analysis of a post with its follow-up task.
// Either may be nil when absent.
type AnalysisStatus struct {
	Analysis *domain.FinalAnalysisResult `json:"analysis"`
	FollowUp *domain.FollowUpTask        `json:"follow_up,omitempty"`
}

// Status returns what is known about postID.
func (o *Orchestrator) Status(ctx context.Context, postID string) (*AnalysisStatus, error) {
	status := &AnalysisStatus{}

	if o.analyses != nil {
		a, err := o.analyses.GetByPostID(ctx, postID)
		switch {
		case err == nil:
			status.Analysis = a
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("get analysis %s: %w", postID, err)
		}
	}

	if o.followUps != nil {
		t, err := o.followUps.Status(ctx, postID)
		switch {
		case err == nil:
			status.FollowUp = t
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("get follow-up %s: %w", postID, err)
		}
	}

	return status, nil
}
