package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

func TestVipStore_ApplyOutcome(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewVipStore(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	outcome := storage.VipOutcome{
		Handle: "newauthor", Platform: domain.PlatformTwitter, Coin: "DOGE",
		Delta: 10, InitialScore: domain.InfluenceScoreDiscovered, At: now,
	}

	rec, err := store.ApplyOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rec.InfluenceScore)
	assert.Equal(t, []string{"DOGE"}, rec.CoinsInfluenced)
	assert.Equal(t, int64(1), rec.Version)

	rec, err = store.ApplyOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.Equal(t, 60.0, rec.InfluenceScore)
	assert.Equal(t, []string{"DOGE"}, rec.CoinsInfluenced)
	assert.Equal(t, int64(2), rec.Version)

	outcome.Coin = "SHIB"
	outcome.Delta = 50
	rec, err = store.ApplyOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rec.InfluenceScore)
	assert.ElementsMatch(t, []string{"DOGE", "SHIB"}, rec.CoinsInfluenced)
}

func TestVipStore_ConcurrentApplyOutcome(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewVipStore(pool)
	ctx := context.Background()

	_, err := store.SeedIfAbsent(ctx, &domain.VipRecord{
		Handle: "trader", Platform: domain.PlatformTwitter, InfluenceScore: 0, UpdatedAt: time.Now(),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ApplyOutcome(ctx, storage.VipOutcome{
				Handle: "trader", Platform: domain.PlatformTwitter, Coin: "WIF",
				Delta: 5, InitialScore: 50, At: time.Now(),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "trader")
	require.NoError(t, err)
	assert.Equal(t, 40.0, rec.InfluenceScore)
}

func TestVipStore_SeedAndTop(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewVipStore(pool)
	ctx := context.Background()
	now := time.Now()

	inserted, err := store.SeedIfAbsent(ctx, &domain.VipRecord{Handle: "elonmusk", Platform: domain.PlatformTwitter, InfluenceScore: 100, UpdatedAt: now})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.SeedIfAbsent(ctx, &domain.VipRecord{Handle: "elonmusk", Platform: domain.PlatformTwitter, InfluenceScore: 1, UpdatedAt: now})
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = store.SeedIfAbsent(ctx, &domain.VipRecord{Handle: "cz_binance", Platform: domain.PlatformTwitter, InfluenceScore: 80, UpdatedAt: now})
	require.NoError(t, err)

	top, err := store.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "elonmusk", top[0].Handle)
	assert.Equal(t, 100.0, top[0].InfluenceScore)
	assert.Equal(t, "cz_binance", top[1].Handle)

	_, err = store.Get(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
