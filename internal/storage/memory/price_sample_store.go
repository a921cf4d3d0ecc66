package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// PriceSampleStore is an in-memory implementation of storage.PriceSampleStore.
type PriceSampleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceSample // keyed by (coin, timestamp_ms)
}

// NewPriceSampleStore creates a new in-memory price sample store.
func NewPriceSampleStore() *PriceSampleStore {
	return &PriceSampleStore{
		data: make(map[string]*domain.PriceSample),
	}
}

func sampleKey(coin string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", coin, timestampMs)
}

// Insert adds a sample. Returns ErrDuplicateKey if (coin, timestamp_ms) exists.
func (s *PriceSampleStore) Insert(_ context.Context, p *domain.PriceSample) error {
	if p == nil || p.Coin == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sampleKey(p.Coin, p.TimestampMs)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	sampleCopy := *p
	s.data[key] = &sampleCopy
	return nil
}

// GetByTimeRange retrieves samples for a coin within [start, end] (inclusive).
func (s *PriceSampleStore) GetByTimeRange(_ context.Context, coin string, start, end int64) ([]*domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceSample
	for _, p := range s.data {
		if p.Coin == coin && p.TimestampMs >= start && p.TimestampMs <= end {
			sampleCopy := *p
			result = append(result, &sampleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)
