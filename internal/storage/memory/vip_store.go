package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// VipStore is an in-memory implementation of storage.VipStore.
// ApplyOutcome runs under the store mutex, so merges are atomic.
type VipStore struct {
	mu   sync.RWMutex
	data map[string]*domain.VipRecord // keyed by lower-cased handle
}

// NewVipStore creates a new in-memory VIP store.
func NewVipStore() *VipStore {
	return &VipStore{
		data: make(map[string]*domain.VipRecord),
	}
}

// Get returns the record for handle.
func (s *VipStore) Get(_ context.Context, handle string) (*domain.VipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[handle]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// ApplyOutcome creates or merges a record.
func (s *VipStore) ApplyOutcome(_ context.Context, o storage.VipOutcome) (*domain.VipRecord, error) {
	if o.Handle == "" || o.Coin == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[o.Handle]
	if !exists {
		r = &domain.VipRecord{
			Handle:          o.Handle,
			Platform:        o.Platform,
			InfluenceScore:  o.InitialScore,
			CoinsInfluenced: []string{o.Coin},
			UpdatedAt:       o.At,
			Version:         1,
		}
		s.data[o.Handle] = r
		return r.Clone(), nil
	}

	r.InfluenceScore = math.Min(domain.InfluenceScoreMax, r.InfluenceScore+o.Delta)
	if !containsString(r.CoinsInfluenced, o.Coin) {
		r.CoinsInfluenced = append(r.CoinsInfluenced, o.Coin)
	}
	r.UpdatedAt = o.At
	r.Version++
	return r.Clone(), nil
}

// SeedIfAbsent inserts r unless a record for the handle exists.
func (s *VipStore) SeedIfAbsent(_ context.Context, r *domain.VipRecord) (bool, error) {
	if r == nil || r.Handle == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Handle]; exists {
		return false, nil
	}
	seeded := r.Clone()
	seeded.Version = 1
	s.data[r.Handle] = seeded
	return true, nil
}

// Top returns up to limit records ordered by score DESC.
func (s *VipStore) Top(_ context.Context, limit int) ([]*domain.VipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.VipRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, r.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].InfluenceScore == result[j].InfluenceScore {
			return result[i].Handle < result[j].Handle
		}
		return result[i].InfluenceScore > result[j].InfluenceScore
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

var _ storage.VipStore = (*VipStore)(nil)
