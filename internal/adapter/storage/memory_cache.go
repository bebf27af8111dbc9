package storage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sirazahmedsyed/product-stock-service/internal/port"
)

const DefaultCacheTTL = 5 * time.Minute

type cacheItem struct {
	level     int
	expiresAt time.Time
}

// MemoryCache is an in-process read-through stock cache. Concurrent misses
// for the same product are collapsed into a single ledger fetch.
type MemoryCache struct {
	ledger port.Ledger
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	items map[string]cacheItem
	group singleflight.Group
}

func NewMemoryCache(ledger port.Ledger, ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ledger: ledger,
		ttl:    ttl,
		now:    time.Now,
		items:  make(map[string]cacheItem),
	}
}

func (c *MemoryCache) Get(ctx context.Context, productID string) (int, error) {
	c.mu.RLock()
	item, ok := c.items[productID]
	c.mu.RUnlock()
	if ok && c.now().Before(item.expiresAt) {
		return item.level, nil
	}

	v, err, _ := c.group.Do(productID, func() (interface{}, error) {
		level, err := c.ledger.GetStockLevel(ctx, productID)
		if err != nil {
			return 0, err
		}
		c.store(productID, level)
		return level, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (c *MemoryCache) Set(_ context.Context, productID string, level int) error {
	c.store(productID, level)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, productID string) error {
	c.mu.Lock()
	delete(c.items, productID)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) store(productID string, level int) {
	c.mu.Lock()
	c.items[productID] = cacheItem{level: level, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
