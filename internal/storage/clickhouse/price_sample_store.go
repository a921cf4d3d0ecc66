package clickhouse

import (
	"context"
	"fmt"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// PriceSampleStore implements storage.PriceSampleStore using ClickHouse.
type PriceSampleStore struct {
	conn *Conn
}

// NewPriceSampleStore creates a new PriceSampleStore.
func NewPriceSampleStore(conn *Conn) *PriceSampleStore {
	return &PriceSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)

// Insert adds a sample. Returns ErrDuplicateKey if (coin, timestamp_ms) exists.
// ReplacingMergeTree would silently collapse duplicates, so existence is checked first.
func (s *PriceSampleStore) Insert(ctx context.Context, p *domain.PriceSample) error {
	if p == nil || p.Coin == "" || p.TimestampMs < 0 {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, p.Coin, p.TimestampMs)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO price_samples (
			coin, timestamp_ms, price, volume_24h, market_cap, source
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		p.Coin, uint64(p.TimestampMs), p.Price, p.Volume24h, p.MarketCap, p.Source,
	)
	if err != nil {
		return fmt.Errorf("insert price sample: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves samples for a coin within [start, end] (inclusive).
func (s *PriceSampleStore) GetByTimeRange(ctx context.Context, coin string, start, end int64) ([]*domain.PriceSample, error) {
	began := time.Now()
	out, err := s.getByTimeRange(ctx, coin, start, end)
	observe("price_samples_range", began, err)
	return out, err
}

func (s *PriceSampleStore) getByTimeRange(ctx context.Context, coin string, start, end int64) ([]*domain.PriceSample, error) {
	if start < 0 {
		start = 0
	}
	if end < start {
		return nil, nil
	}

	query := `
		SELECT coin, timestamp_ms, price, volume_24h, market_cap, source
		FROM price_samples FINAL
		WHERE coin = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, coin, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPriceSamples(rows)
}

func (s *PriceSampleStore) exists(ctx context.Context, coin string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM price_samples
		WHERE coin = ? AND timestamp_ms = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, coin, uint64(timestampMs)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanPriceSamples(rows chRows) ([]*domain.PriceSample, error) {
	var samples []*domain.PriceSample

	for rows.Next() {
		var p domain.PriceSample
		var timestampMs uint64

		err := rows.Scan(&p.Coin, &timestampMs, &p.Price, &p.Volume24h, &p.MarketCap, &p.Source)
		if err != nil {
			return nil, fmt.Errorf("scan price sample row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		samples = append(samples, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price sample rows: %w", err)
	}

	return samples, nil
}
