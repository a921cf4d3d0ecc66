package pricing

import (
	"context"
	"errors"
	"log"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// RecordingProvider persists every snapshot fetched through it as a PriceSample,
// building the history that History reads from. Recording is best-effort and
// snapshots without a positive price are not recorded.
type RecordingProvider struct {
	next   Provider
	store  storage.PriceSampleStore
	source string
	logger *log.Logger
}

// NewRecordingProvider wraps next. source labels the samples it writes.
func NewRecordingProvider(next Provider, store storage.PriceSampleStore, source string, logger *log.Logger) *RecordingProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &RecordingProvider{next: next, store: store, source: source, logger: logger}
}

// Metrics implements Provider.
func (p *RecordingProvider) Metrics(ctx context.Context, coin string) (*domain.TokenMetrics, error) {
	m, err := p.next.Metrics(ctx, coin)
	if err != nil {
		return nil, err
	}
	if m.Price <= 0 {
		return m, nil
	}

	sample := &domain.PriceSample{
		Coin:        coinKey(coin),
		TimestampMs: m.ObservedAt.UnixMilli(),
		Price:       m.Price,
		Volume24h:   m.Volume24h,
		MarketCap:   m.MarketCap,
		Source:      p.source,
	}
	if err := p.store.Insert(ctx, sample); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		p.logger.Printf("[pricing] record sample %s: %v", sample.Coin, err)
	}
	return m, nil
}

var _ Provider = (*RecordingProvider)(nil)
