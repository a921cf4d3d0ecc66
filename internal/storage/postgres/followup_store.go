package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// FollowUpStore implements storage.FollowUpStore using PostgreSQL.
type FollowUpStore struct {
	pool *Pool
}

// NewFollowUpStore creates a new FollowUpStore.
func NewFollowUpStore(pool *Pool) *FollowUpStore {
	return &FollowUpStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FollowUpStore = (*FollowUpStore)(nil)

const followUpColumns = `
	post_id, coins, author, created_at, scheduled_at, completed, completed_at,
	significant_impact_found, attempts, last_attempted_at, price_impacts
`

// Insert adds a new task. Returns ErrDuplicateKey if a task for post_id exists.
func (s *FollowUpStore) Insert(ctx context.Context, t *domain.FollowUpTask) error {
	if t == nil || t.PostID == "" {
		return storage.ErrInvalidInput
	}

	impacts, err := marshalImpacts(t.PriceImpacts)
	if err != nil {
		return err
	}

	query := `INSERT INTO followups (` + followUpColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.pool.Exec(ctx, query,
		t.PostID,
		t.Coins,
		t.Author,
		t.CreatedAt,
		t.ScheduledAt,
		t.Completed,
		t.CompletedAt,
		t.SignificantImpactFound,
		t.Attempts,
		t.LastAttemptedAt,
		impacts,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert followup: %w", err)
	}
	return nil
}

// GetByPostID returns the task for a post. Returns ErrNotFound if none.
func (s *FollowUpStore) GetByPostID(ctx context.Context, postID string) (*domain.FollowUpTask, error) {
	query := `SELECT ` + followUpColumns + ` FROM followups WHERE post_id = $1`

	t, err := scanFollowUp(s.pool.QueryRow(ctx, query, postID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get followup: %w", err)
	}
	return t, nil
}

// ListDue returns open tasks scheduled at or before now with attempts left.
func (s *FollowUpStore) ListDue(ctx context.Context, now time.Time, maxAttempts int) ([]*domain.FollowUpTask, error) {
	began := time.Now()
	out, err := s.listDue(ctx, now, maxAttempts)
	observe("followup_list_due", began, err)
	return out, err
}

func (s *FollowUpStore) listDue(ctx context.Context, now time.Time, maxAttempts int) ([]*domain.FollowUpTask, error) {
	query := `SELECT ` + followUpColumns + `
		FROM followups
		WHERE completed = FALSE AND scheduled_at <= $1 AND attempts < $2
		ORDER BY scheduled_at ASC, post_id ASC`

	rows, err := s.pool.Query(ctx, query, now, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("list due followups: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.FollowUpTask
	for rows.Next() {
		t, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan followup: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followups: %w", err)
	}
	return tasks, nil
}

// MarkAttempt increments attempts in a single statement and returns the updated task.
func (s *FollowUpStore) MarkAttempt(ctx context.Context, postID string, at time.Time) (*domain.FollowUpTask, error) {
	began := time.Now()
	out, err := s.markAttempt(ctx, postID, at)
	observe("followup_mark_attempt", began, err)
	return out, err
}

func (s *FollowUpStore) markAttempt(ctx context.Context, postID string, at time.Time) (*domain.FollowUpTask, error) {
	query := `UPDATE followups
		SET attempts = attempts + 1, last_attempted_at = $2
		WHERE post_id = $1
		RETURNING ` + followUpColumns

	t, err := scanFollowUp(s.pool.QueryRow(ctx, query, postID, at))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("mark followup attempt: %w", err)
	}
	return t, nil
}

// SaveProgress replaces the accumulated price impacts.
func (s *FollowUpStore) SaveProgress(ctx context.Context, postID string, impacts []domain.PriceImpactMeasurement) error {
	data, err := marshalImpacts(impacts)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE followups SET price_impacts = $2 WHERE post_id = $1`, postID, data)
	if err != nil {
		return fmt.Errorf("save followup progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Complete marks a task completed with its final measurements.
func (s *FollowUpStore) Complete(ctx context.Context, postID string, impacts []domain.PriceImpactMeasurement, significant bool, at time.Time) error {
	began := time.Now()
	err := s.complete(ctx, postID, impacts, significant, at)
	observe("followup_complete", began, err)
	return err
}

func (s *FollowUpStore) complete(ctx context.Context, postID string, impacts []domain.PriceImpactMeasurement, significant bool, at time.Time) error {
	data, err := marshalImpacts(impacts)
	if err != nil {
		return err
	}

	query := `UPDATE followups
		SET completed = TRUE, completed_at = $2, significant_impact_found = $3, price_impacts = $4
		WHERE post_id = $1`

	tag, err := s.pool.Exec(ctx, query, postID, at, significant, data)
	if err != nil {
		return fmt.Errorf("complete followup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PurgeCompletedBefore deletes tasks completed before cutoff.
func (s *FollowUpStore) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM followups WHERE completed = TRUE AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge followups: %w", err)
	}
	return tag.RowsAffected(), nil
}

func marshalImpacts(impacts []domain.PriceImpactMeasurement) ([]byte, error) {
	if impacts == nil {
		impacts = []domain.PriceImpactMeasurement{}
	}
	data, err := json.Marshal(impacts)
	if err != nil {
		return nil, fmt.Errorf("marshal price impacts: %w", err)
	}
	return data, nil
}

func scanFollowUp(row pgx.Row) (*domain.FollowUpTask, error) {
	var t domain.FollowUpTask
	var impacts []byte

	err := row.Scan(
		&t.PostID,
		&t.Coins,
		&t.Author,
		&t.CreatedAt,
		&t.ScheduledAt,
		&t.Completed,
		&t.CompletedAt,
		&t.SignificantImpactFound,
		&t.Attempts,
		&t.LastAttemptedAt,
		&impacts,
	)
	if err != nil {
		return nil, err
	}

	if len(impacts) > 0 {
		if err := json.Unmarshal(impacts, &t.PriceImpacts); err != nil {
			return nil, fmt.Errorf("unmarshal price impacts: %w", err)
		}
	}
	return &t, nil
}
