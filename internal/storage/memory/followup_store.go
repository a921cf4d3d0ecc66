package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// FollowUpStore is an in-memory implementation of storage.FollowUpStore.
type FollowUpStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FollowUpTask // keyed by post_id
}

// NewFollowUpStore creates a new in-memory follow-up store.
func NewFollowUpStore() *FollowUpStore {
	return &FollowUpStore{
		data: make(map[string]*domain.FollowUpTask),
	}
}

// Insert adds a new task. Returns ErrDuplicateKey if a task for post_id exists.
func (s *FollowUpStore) Insert(_ context.Context, t *domain.FollowUpTask) error {
	if t == nil || t.PostID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.PostID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[t.PostID] = t.Clone()
	return nil
}

// GetByPostID returns the task for a post.
func (s *FollowUpStore) GetByPostID(_ context.Context, postID string) (*domain.FollowUpTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[postID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// ListDue returns tasks ready for processing, ordered by scheduled_at ASC.
func (s *FollowUpStore) ListDue(_ context.Context, now time.Time, maxAttempts int) ([]*domain.FollowUpTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FollowUpTask
	for _, t := range s.data {
		if t.IsDue(now, maxAttempts) {
			result = append(result, t.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ScheduledAt.Equal(result[j].ScheduledAt) {
			return result[i].PostID < result[j].PostID
		}
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})

	return result, nil
}

// MarkAttempt increments attempts and stamps last_attempted_at.
func (s *FollowUpStore) MarkAttempt(_ context.Context, postID string, at time.Time) (*domain.FollowUpTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[postID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	t.Attempts++
	attempted := at
	t.LastAttemptedAt = &attempted
	return t.Clone(), nil
}

// SaveProgress replaces accumulated price impacts.
func (s *FollowUpStore) SaveProgress(_ context.Context, postID string, impacts []domain.PriceImpactMeasurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[postID]
	if !exists {
		return storage.ErrNotFound
	}
	t.PriceImpacts = append([]domain.PriceImpactMeasurement(nil), impacts...)
	return nil
}

// Complete marks a task completed.
func (s *FollowUpStore) Complete(_ context.Context, postID string, impacts []domain.PriceImpactMeasurement, significant bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[postID]
	if !exists {
		return storage.ErrNotFound
	}
	completedAt := at
	t.Completed = true
	t.CompletedAt = &completedAt
	t.SignificantImpactFound = significant
	t.PriceImpacts = append([]domain.PriceImpactMeasurement(nil), impacts...)
	return nil
}

// PurgeCompletedBefore deletes tasks completed before cutoff.
func (s *FollowUpStore) PurgeCompletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, t := range s.data {
		if t.Completed && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed, nil
}

var _ storage.FollowUpStore = (*FollowUpStore)(nil)
