// Package vip maintains per-author influence scores fed by observed price impact.
package vip

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/observability"
	"memecoin-signal-lab/internal/storage"
)

// DefaultSeeds are the pre-configured VIPs inserted at startup when missing.
var DefaultSeeds = []string{"elonmusk"}

// maxConflictRetries bounds compare-and-swap retries against stores without server-side merge.
const maxConflictRetries = 5

// Options configures a Tracker.
type Options struct {
	Seeds  []string // handles seeded at InfluenceScoreSeeded; nil uses DefaultSeeds
	Logger *log.Logger
	Now    func() time.Time
}

// Tracker reads and updates VIP reputation. All writes go through
// storage.VipStore.ApplyOutcome, so concurrent callers never lose updates.
type Tracker struct {
	store  storage.VipStore
	seeds  []string
	logger *log.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(store storage.VipStore, opts Options) *Tracker {
	if opts.Seeds == nil {
		opts.Seeds = DefaultSeeds
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		store:  store,
		seeds:  opts.Seeds,
		logger: opts.Logger,
		now:    opts.Now,
	}
}

func normalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(handle), "@")))
}

// IsTracked reports whether a record exists for handle.
func (t *Tracker) IsTracked(ctx context.Context, handle string) (bool, error) {
	rec, err := t.GetInfluence(ctx, handle)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// GetInfluence returns the record for handle, or (nil, nil) when untracked.
// It never creates a record.
func (t *Tracker) GetInfluence(ctx context.Context, handle string) (*domain.VipRecord, error) {
	rec, err := t.store.Get(ctx, normalizeHandle(handle))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vip %s: %w", handle, err)
	}
	return rec, nil
}

// RecordOutcome merges an observed price impact (percent) for coin into the author's record.
// Untracked authors are created at InfluenceScoreDiscovered. Tracked authors gain
// domain.InfluenceDelta(impact), capped at InfluenceScoreMax.
func (t *Tracker) RecordOutcome(ctx context.Context, handle, coin string, impact float64) error {
	h := normalizeHandle(handle)
	if h == "" || coin == "" {
		return fmt.Errorf("record outcome: %w", storage.ErrInvalidInput)
	}

	outcome := storage.VipOutcome{
		Handle:       h,
		Platform:     domain.PlatformTwitter,
		Coin:         coin,
		Delta:        domain.InfluenceDelta(impact),
		InitialScore: domain.InfluenceScoreDiscovered,
		At:           t.now(),
	}

	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		rec, err := t.store.ApplyOutcome(ctx, outcome)
		if err == nil {
			if rec.Version == 1 {
				observability.RecordVipUpdate("created")
			} else {
				observability.RecordVipUpdate("updated")
			}
			t.logger.Printf("[vip] %s score=%.1f coin=%s impact=%.1f%%", h, rec.InfluenceScore, coin, impact)
			return nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			observability.RecordVipUpdate("error")
			return fmt.Errorf("apply vip outcome for %s: %w", h, err)
		}
		observability.RecordVipUpdate("conflict")
		lastErr = err
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("apply vip outcome for %s after %d attempts: %w", h, maxConflictRetries, lastErr)
}

// Seed inserts the configured VIPs at InfluenceScoreSeeded unless they already exist.
// Returns the number of records created.
func (t *Tracker) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, handle := range t.seeds {
		h := normalizeHandle(handle)
		inserted, err := t.store.SeedIfAbsent(ctx, &domain.VipRecord{
			Handle:          h,
			Platform:        domain.PlatformTwitter,
			InfluenceScore:  domain.InfluenceScoreSeeded,
			CoinsInfluenced: []string{},
			UpdatedAt:       t.now(),
		})
		if err != nil {
			return created, fmt.Errorf("seed vip %s: %w", h, err)
		}
		if inserted {
			created++
			t.logger.Printf("[vip] seeded %s at %.0f", h, domain.InfluenceScoreSeeded)
		}
	}
	return created, nil
}

// TopInfluencers returns up to limit records ordered by score. limit <= 0 uses 10.
func (t *Tracker) TopInfluencers(ctx context.Context, limit int) ([]*domain.VipRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	records, err := t.store.Top(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top influencers: %w", err)
	}
	return records, nil
}
