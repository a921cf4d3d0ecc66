package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// AnalysisStore is an in-memory implementation of storage.AnalysisStore.
type AnalysisStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FinalAnalysisResult // keyed by analysis_id
}

// NewAnalysisStore creates a new in-memory analysis store.
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{
		data: make(map[string]*domain.FinalAnalysisResult),
	}
}

// Insert appends a result. Returns ErrDuplicateKey if analysis_id exists.
func (s *AnalysisStore) Insert(_ context.Context, r *domain.FinalAnalysisResult) error {
	if r == nil || r.AnalysisID == "" || r.Post.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.AnalysisID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.AnalysisID] = r.Clone()
	return nil
}

// GetByPostID returns the most recent result for a post.
func (s *AnalysisStore) GetByPostID(_ context.Context, postID string) (*domain.FinalAnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.FinalAnalysisResult
	for _, r := range s.data {
		if r.Post.ID != postID {
			continue
		}
		if latest == nil || r.AnalyzedAt.After(latest.AnalyzedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest.Clone(), nil
}

// ListByPattern returns results matching pattern analyzed within [start, end].
func (s *AnalysisStore) ListByPattern(_ context.Context, pattern string, start, end time.Time) ([]*domain.FinalAnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FinalAnalysisResult
	for _, r := range s.data {
		if r.AnalyzedAt.Before(start) || r.AnalyzedAt.After(end) {
			continue
		}
		if r.Candidate.HasPattern(pattern) {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AnalyzedAt.Equal(result[j].AnalyzedAt) {
			return result[i].AnalysisID < result[j].AnalysisID
		}
		return result[i].AnalyzedAt.Before(result[j].AnalyzedAt)
	})

	return result, nil
}

var _ storage.AnalysisStore = (*AnalysisStore)(nil)
