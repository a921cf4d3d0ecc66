package pricing

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/observability"
)

// DefaultCacheTTL matches the upstream refresh cadence of the price API.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores token snapshots with a TTL.
type Cache interface {
	// Get returns the cached snapshot. found is false on miss or expiry.
	Get(ctx context.Context, key string) (m *domain.TokenMetrics, found bool, err error)
	Set(ctx context.Context, key string, m *domain.TokenMetrics, ttl time.Duration) error
}

type memoryEntry struct {
	metrics   domain.TokenMetrics
	expiresAt time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]memoryEntry), now: time.Now}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.TokenMetrics, bool, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	m := e.metrics
	return &m, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, m *domain.TokenMetrics, ttl time.Duration) error {
	if m == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = memoryEntry{metrics: *m, expiresAt: c.now().Add(ttl)}
	return nil
}

// CachedProvider serves snapshots from a Cache and falls through to the wrapped
// Provider on miss. Cache failures degrade to a direct fetch.
type CachedProvider struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedProvider wraps next. ttl <= 0 uses DefaultCacheTTL; nil logger uses log.Default().
func NewCachedProvider(next Provider, cache Cache, ttl time.Duration, logger *log.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl, logger: logger}
}

// coinKey is the identity used for cache keys and price samples.
// Mints keep their case; symbols are upper-cased.
func coinKey(coin string) string {
	return ParseCoin(coin).Raw
}

// Metrics implements Provider.
func (p *CachedProvider) Metrics(ctx context.Context, coin string) (*domain.TokenMetrics, error) {
	key := coinKey(coin)

	m, found, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Printf("[pricing] cache get %s: %v", key, err)
	}
	observability.RecordPriceCache(found)
	if found {
		return m, nil
	}

	m, err = p.next.Metrics(ctx, coin)
	if err != nil {
		if !errors.Is(err, ErrPriceUnavailable) {
			p.logger.Printf("[pricing] fetch %s: %v", coin, err)
		}
		return nil, err
	}

	if err := p.cache.Set(ctx, key, m, p.ttl); err != nil {
		p.logger.Printf("[pricing] cache set %s: %v", key, err)
	}
	return m, nil
}

var (
	_ Cache    = (*MemoryCache)(nil)
	_ Provider = (*CachedProvider)(nil)
)
