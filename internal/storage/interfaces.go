package storage

import (
	"context"
	"time"

	"memecoin-signal-lab/internal/domain"
)

// AnalysisStore provides access to the analyses collection.
type AnalysisStore interface {
	// Insert appends a result. Returns ErrDuplicateKey if analysis_id exists.
	Insert(ctx context.Context, r *domain.FinalAnalysisResult) error

	// GetByPostID returns the most recent result for a post. Returns ErrNotFound if none.
	GetByPostID(ctx context.Context, postID string) (*domain.FinalAnalysisResult, error)

	// ListByPattern returns results whose matched patterns contain pattern and whose
	// analysis time falls within [start, end] (inclusive), ordered by analyzed_at ASC.
	ListByPattern(ctx context.Context, pattern string, start, end time.Time) ([]*domain.FinalAnalysisResult, error)
}

// FollowUpStore provides access to the followups collection, keyed by post id.
type FollowUpStore interface {
	// Insert adds a new task. Returns ErrDuplicateKey if a task for post_id exists.
	Insert(ctx context.Context, t *domain.FollowUpTask) error

	// GetByPostID returns the task for a post. Returns ErrNotFound if none.
	GetByPostID(ctx context.Context, postID string) (*domain.FollowUpTask, error)

	// ListDue returns tasks with scheduled_at <= now, completed = false and
	// attempts < maxAttempts, ordered by scheduled_at ASC.
	ListDue(ctx context.Context, now time.Time, maxAttempts int) ([]*domain.FollowUpTask, error)

	// MarkAttempt atomically increments attempts and sets last_attempted_at.
	// Returns the updated task. Returns ErrNotFound if none.
	MarkAttempt(ctx context.Context, postID string, at time.Time) (*domain.FollowUpTask, error)

	// SaveProgress replaces the accumulated price impacts of a task that stays scheduled.
	SaveProgress(ctx context.Context, postID string, impacts []domain.PriceImpactMeasurement) error

	// Complete marks a task completed with its final measurements.
	Complete(ctx context.Context, postID string, impacts []domain.PriceImpactMeasurement, significant bool, at time.Time) error

	// PurgeCompletedBefore deletes tasks completed before cutoff. Returns rows removed.
	PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// VipOutcome describes one observed outcome to merge into a VipRecord.
type VipOutcome struct {
	Handle       string // lower-cased
	Platform     string
	Coin         string
	Delta        float64 // score increment for an existing record
	InitialScore float64 // score for a newly created record
	At           time.Time
}

// VipStore provides access to VIP reputation records, keyed by lower-cased handle.
type VipStore interface {
	// Get returns the record for handle. Returns ErrNotFound if none.
	Get(ctx context.Context, handle string) (*domain.VipRecord, error)

	// ApplyOutcome upserts atomically: creates the record with InitialScore and {Coin}
	// when absent, otherwise sets score = min(100, score + Delta) and adds Coin to the set.
	// Implementations without server-side merge use a versioned compare-and-swap and
	// return ErrConflict when the record changed underneath; callers retry.
	ApplyOutcome(ctx context.Context, o VipOutcome) (*domain.VipRecord, error)

	// SeedIfAbsent inserts r unless a record for r.Handle exists. Reports whether it inserted.
	SeedIfAbsent(ctx context.Context, r *domain.VipRecord) (bool, error)

	// Top returns up to limit records ordered by influence score DESC, handle ASC.
	Top(ctx context.Context, limit int) ([]*domain.VipRecord, error)
}

// GraphStore provides idempotent node and edge merges over the relationship graph.
type GraphStore interface {
	// MergeNode creates the node if absent; repeated merges are no-ops.
	MergeNode(ctx context.Context, n *domain.GraphNode) error

	// MergeEdge creates the edge if absent; repeated merges are no-ops.
	MergeEdge(ctx context.Context, e *domain.GraphEdge) error

	// EdgesTo returns edges of type t pointing at (label, id), newest first, at most limit.
	EdgesTo(ctx context.Context, t domain.EdgeType, label domain.NodeLabel, id string, limit int) ([]*domain.GraphEdge, error)
}

// PriceSampleStore provides access to price_samples storage.
type PriceSampleStore interface {
	// Insert adds a sample. Returns ErrDuplicateKey if (coin, timestamp_ms) exists.
	Insert(ctx context.Context, s *domain.PriceSample) error

	// GetByTimeRange retrieves samples for a coin within [start, end] ms (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, coin string, start, end int64) ([]*domain.PriceSample, error)
}
