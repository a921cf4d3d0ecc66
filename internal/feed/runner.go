package feed

import (
	"context"
	"log"
	"sync"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/inference"
	"memecoin-signal-lab/internal/observability"
)

// PostSource yields posts until its context is cancelled.
type PostSource interface {
	Subscribe(ctx context.Context) (<-chan domain.Post, error)
}

// Analyzer runs the full analysis for one post.
type Analyzer interface {
	Analyze(ctx context.Context, post domain.Post, image *domain.ImageAnalysis) (*domain.FinalAnalysisResult, error)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Workers bounds concurrent analyses. Default 4.
	Workers int
	// ImageTimeout bounds the image description call. Default 20s.
	ImageTimeout time.Duration
	// AnalysisTimeout bounds one analysis. Default 2m.
	AnalysisTimeout time.Duration
	// SeenCapacity bounds the duplicate-post window. Default 10000.
	SeenCapacity int
	// Images describes the first media attachment. Optional.
	Images inference.ImageDescriber
	Logger *log.Logger
}

// Runner pulls posts from a source and analyzes them with bounded concurrency.
// Posts already seen (by id) are dropped.
type Runner struct {
	source   PostSource
	analyzer Analyzer
	opts     RunnerOptions
	logger   *log.Logger

	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	inFlight int
}

// NewRunner creates a runner.
func NewRunner(source PostSource, analyzer Analyzer, opts RunnerOptions) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = 20 * time.Second
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 2 * time.Minute
	}
	if opts.SeenCapacity <= 0 {
		opts.SeenCapacity = 10000
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		source:   source,
		analyzer: analyzer,
		opts:     opts,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// Run consumes the source until ctx is cancelled or the source closes,
// then waits for in-flight analyses.
func (r *Runner) Run(ctx context.Context) error {
	posts, err := r.source.Subscribe(ctx)
	if err != nil {
		return err
	}

	sem := make(chan struct{}, r.opts.Workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var post domain.Post
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case post, ok = <-posts:
			if !ok {
				return nil
			}
		}

		if !r.markSeen(post.ID) {
			observability.RecordPostReceived("duplicate")
			continue
		}
		observability.RecordPostReceived("accepted")

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r.handle(ctx, post)
		}()
	}
}

func (r *Runner) handle(ctx context.Context, post domain.Post) {
	r.track(1)
	defer r.track(-1)

	ctx, cancel := context.WithTimeout(ctx, r.opts.AnalysisTimeout)
	defer cancel()

	image := r.describe(ctx, post)

	result, err := r.analyzer.Analyze(ctx, post, image)
	if err != nil {
		r.logger.Printf("[feed] analysis of post %s failed: %v", post.ID, err)
		return
	}
	if result.Candidate.DeepAnalysis {
		r.logger.Printf("[feed] post %s: confidence %.1f", post.ID, result.Confidence)
	}
}

// describe is best effort: a failure leaves the analysis text-only.
func (r *Runner) describe(ctx context.Context, post domain.Post) *domain.ImageAnalysis {
	if r.opts.Images == nil || len(post.MediaURLs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.ImageTimeout)
	defer cancel()

	image, err := r.opts.Images.DescribeImage(ctx, post.MediaURLs[0])
	if err != nil {
		r.logger.Printf("[feed] image description for post %s failed: %v", post.ID, err)
		return nil
	}
	return image
}

// markSeen reports whether id is new. The oldest ids are evicted past capacity.
func (r *Runner) markSeen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = struct{}{}
	r.order = append(r.order, id)
	if len(r.order) > r.opts.SeenCapacity {
		delete(r.seen, r.order[0])
		r.order = r.order[1:]
	}
	return true
}

func (r *Runner) track(delta int) {
	r.mu.Lock()
	r.inFlight += delta
	n := r.inFlight
	r.mu.Unlock()
	observability.SetAnalysesInFlight(n)
}
