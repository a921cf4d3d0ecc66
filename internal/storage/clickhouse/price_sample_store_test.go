package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

func TestPriceSampleStore_InsertAndGetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceSampleStore(conn)
	ctx := context.Background()

	for _, s := range []*domain.PriceSample{
		{Coin: "PEPE", TimestampMs: 3000, Price: 1.3, Source: "dexscreener"},
		{Coin: "PEPE", TimestampMs: 1000, Price: 1.0, Volume24h: 5e6, MarketCap: 1e9, Source: "dexscreener"},
		{Coin: "PEPE", TimestampMs: 2000, Price: 1.1, Source: "dexscreener"},
		{Coin: "WIF", TimestampMs: 2000, Price: 2.5, Source: "dexscreener"},
	} {
		require.NoError(t, store.Insert(ctx, s))
	}

	got, err := store.GetByTimeRange(ctx, "PEPE", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, 1.0, got[0].Price)
	assert.Equal(t, 5e6, got[0].Volume24h)
	assert.Equal(t, 1e9, got[0].MarketCap)
	assert.Equal(t, "dexscreener", got[0].Source)
	assert.Equal(t, int64(2000), got[1].TimestampMs)
}

func TestPriceSampleStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceSampleStore(conn)
	ctx := context.Background()
	s := &domain.PriceSample{Coin: "PEPE", TimestampMs: 1000, Price: 1.0}

	require.NoError(t, store.Insert(ctx, s))
	assert.ErrorIs(t, store.Insert(ctx, s), storage.ErrDuplicateKey)
}
