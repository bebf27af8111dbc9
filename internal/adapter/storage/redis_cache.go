package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sirazahmedsyed/product-stock-service/internal/port"
)

const stockKeyPrefix = "stock:"

// RedisCache is a Redis-backed read-through stock cache, for deployments
// where several gateway replicas should share one cache tier. The per-product
// lock is still process-local; only cache reads are shared.
type RedisCache struct {
	client *redis.Client
	ledger port.Ledger
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ledger port.Ledger, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ledger: ledger, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, productID string) (int, error) {
	level, err := r.client.Get(ctx, stockKeyPrefix+productID).Int()
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("cache get: %w", err)
	}

	level, err = r.ledger.GetStockLevel(ctx, productID)
	if err != nil {
		return 0, err
	}
	if err := r.Set(ctx, productID, level); err != nil {
		return 0, err
	}
	return level, nil
}

func (r *RedisCache) Set(ctx context.Context, productID string, level int) error {
	if err := r.client.Set(ctx, stockKeyPrefix+productID, level, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, productID string) error {
	if err := r.client.Del(ctx, stockKeyPrefix+productID).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
