// Package followup schedules durable re-checks of analysed posts and feeds the
// measured price impact back into VIP reputation.
package followup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/observability"
	"memecoin-signal-lab/internal/pricing"
	"memecoin-signal-lab/internal/storage"
)

// Defaults.
const (
	DefaultDelay              = 48 * time.Hour
	DefaultCheckInterval      = 5 * time.Minute
	DefaultMaxAttempts        = 3
	DefaultMinImpactThreshold = 50.0
	DefaultTaskTimeout        = 30 * time.Second
	DefaultPriceTimeout       = 10 * time.Second
	DefaultRetention          = 30 * 24 * time.Hour
	DefaultCleanupInterval    = 24 * time.Hour
)

// ImpactMeasurer measures the price change of coin since a point in time.
type ImpactMeasurer interface {
	PriceImpact(ctx context.Context, coin string, since time.Time) (float64, bool, error)
}

// OutcomeRecorder receives significant outcomes.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, handle, coin string, impact float64) error
}

// Options configures a Scheduler.
type Options struct {
	Delay              time.Duration
	CheckInterval      time.Duration
	MaxAttempts        int
	MinImpactThreshold float64
	TaskTimeout        time.Duration
	PriceTimeout       time.Duration
	Retention          time.Duration
	CleanupInterval    time.Duration
	// Refresher, when set, is asked for a fresh snapshot of each coin before
	// measuring so the sample history has a data point near the check time.
	Refresher pricing.Provider
	Logger    *log.Logger
	Now       func() time.Time
}

// Scheduler owns the FollowUpTask lifecycle.
type Scheduler struct {
	store     storage.FollowUpStore
	measurer  ImpactMeasurer
	recorder  OutcomeRecorder
	refresher pricing.Provider

	delay              time.Duration
	checkInterval      time.Duration
	maxAttempts        int
	minImpactThreshold float64
	taskTimeout        time.Duration
	priceTimeout       time.Duration
	retention          time.Duration
	cleanupInterval    time.Duration
	logger             *log.Logger
	now                func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(store storage.FollowUpStore, measurer ImpactMeasurer, recorder OutcomeRecorder, opts Options) *Scheduler {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.MinImpactThreshold <= 0 {
		opts.MinImpactThreshold = DefaultMinImpactThreshold
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.PriceTimeout <= 0 {
		opts.PriceTimeout = DefaultPriceTimeout
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Scheduler{
		store:              store,
		measurer:           measurer,
		recorder:           recorder,
		refresher:          opts.Refresher,
		delay:              opts.Delay,
		checkInterval:      opts.CheckInterval,
		maxAttempts:        opts.MaxAttempts,
		minImpactThreshold: opts.MinImpactThreshold,
		taskTimeout:        opts.TaskTimeout,
		priceTimeout:       opts.PriceTimeout,
		retention:          opts.Retention,
		cleanupInterval:    opts.CleanupInterval,
		logger:             opts.Logger,
		now:                opts.Now,
	}
}

// Schedule creates the follow-up task for postID. A task that already exists,
// including one inserted concurrently, makes this a no-op.
func (s *Scheduler) Schedule(ctx context.Context, postID string, coins []string, author string) error {
	if postID == "" || len(coins) == 0 {
		return fmt.Errorf("schedule %q: %w", postID, storage.ErrInvalidInput)
	}

	_, err := s.store.GetByPostID(ctx, postID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup follow-up %s: %w", postID, err)
	}

	now := s.now().UTC()
	task := &domain.FollowUpTask{
		PostID:       postID,
		Coins:        append([]string(nil), coins...),
		Author:       author,
		CreatedAt:    now,
		ScheduledAt:  now.Add(s.delay),
		PriceImpacts: []domain.PriceImpactMeasurement{},
	}
	if err := s.store.Insert(ctx, task); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return fmt.Errorf("insert follow-up %s: %w", postID, err)
	}

	observability.RecordFollowUpScheduled()
	s.logger.Printf("[followup] scheduled %s for %s (%d coins)", postID, task.ScheduledAt.Format(time.RFC3339), len(coins))
	return nil
}

// Status returns the task for postID, or storage.ErrNotFound.
func (s *Scheduler) Status(ctx context.Context, postID string) (*domain.FollowUpTask, error) {
	return s.store.GetByPostID(ctx, postID)
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Due       int
	Completed int
	Failed    int
}

// Run sweeps on every tick and purges old tasks on the cleanup interval.
// It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Printf("[followup] started, check interval: %v, max attempts: %d", s.checkInterval, s.maxAttempts)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()
	cleanupTicker := time.NewTicker(s.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("[followup] stopping")
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Printf("[followup] sweep: %v", err)
			}

		case <-cleanupTicker.C:
			if _, err := s.Cleanup(ctx); err != nil && ctx.Err() == nil {
				s.logger.Printf("[followup] cleanup: %v", err)
			}
		}
	}
}

// Sweep processes every due task. Task failures are logged and counted;
// only failing to list due tasks returns an error.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	tasks, err := s.store.ListDue(ctx, s.now().UTC(), s.maxAttempts)
	if err != nil {
		observability.RecordSweep(1, 0)
		return res, fmt.Errorf("list due follow-ups: %w", err)
	}
	res.Due = len(tasks)

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		completed, err := s.processWithTimeout(ctx, task)
		if err != nil {
			res.Failed++
			s.logger.Printf("[followup] task %s: %v", task.PostID, err)
			continue
		}
		if completed {
			res.Completed++
		}
	}

	observability.RecordSweep(res.Failed, s.now().Unix())
	if res.Due > 0 {
		s.logger.Printf("[followup] sweep: due=%d completed=%d failed=%d", res.Due, res.Completed, res.Failed)
	}
	return res, nil
}

func (s *Scheduler) processWithTimeout(ctx context.Context, task *domain.FollowUpTask) (bool, error) {
	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()
	return s.process(taskCtx, task)
}

// process runs one attempt. The attempt is persisted before any measurement so
// a crash mid-task still counts it.
func (s *Scheduler) process(ctx context.Context, task *domain.FollowUpTask) (bool, error) {
	updated, err := s.store.MarkAttempt(ctx, task.PostID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark attempt: %w", err)
	}
	observability.RecordFollowUpAttempt()

	impacts := append([]domain.PriceImpactMeasurement(nil), updated.PriceImpacts...)
	significant := false

	for _, coin := range updated.Coins {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.refresh(ctx, coin)

		impact, ok, err := s.measure(ctx, coin, updated.CreatedAt)
		if err != nil {
			s.logger.Printf("[followup] price impact %s for %s: %v", coin, updated.PostID, err)
			continue
		}
		if !ok {
			continue
		}

		impacts = append(impacts, domain.PriceImpactMeasurement{
			Coin:          coin,
			ImpactPercent: impact,
			MeasuredAt:    s.now().UTC(),
		})

		if math.Abs(impact) >= s.minImpactThreshold {
			significant = true
			if err := s.recorder.RecordOutcome(ctx, updated.Author, coin, impact); err != nil {
				s.logger.Printf("[followup] record outcome %s/%s: %v", updated.Author, coin, err)
			}
		}
	}

	if significant || updated.Attempts >= s.maxAttempts {
		if err := s.store.Complete(ctx, updated.PostID, impacts, significant, s.now().UTC()); err != nil {
			return false, fmt.Errorf("complete: %w", err)
		}
		outcome := "max_attempts"
		if significant {
			outcome = "significant"
		}
		observability.RecordFollowUpCompleted(outcome)
		s.logger.Printf("[followup] completed %s (%s) after %d attempts", updated.PostID, outcome, updated.Attempts)
		return true, nil
	}

	if err := s.store.SaveProgress(ctx, updated.PostID, impacts); err != nil {
		return false, fmt.Errorf("save progress: %w", err)
	}
	return false, nil
}

func (s *Scheduler) refresh(ctx context.Context, coin string) {
	if s.refresher == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.priceTimeout)
	defer cancel()
	if _, err := s.refresher.Metrics(callCtx, coin); err != nil && !errors.Is(err, pricing.ErrPriceUnavailable) {
		s.logger.Printf("[followup] refresh %s: %v", coin, err)
	}
}

func (s *Scheduler) measure(ctx context.Context, coin string, since time.Time) (float64, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.priceTimeout)
	defer cancel()
	return s.measurer.PriceImpact(callCtx, coin, since)
}

// Cleanup purges tasks completed longer than the retention window ago.
func (s *Scheduler) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.store.PurgeCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge follow-ups before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	observability.RecordFollowUpsPurged(n)
	if n > 0 {
		s.logger.Printf("[followup] purged %d completed tasks", n)
	}
	return n, nil
}
