package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisCacheReadThrough(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ledger := newStubLedger(map[string]int{"r1": 10})
	cache := NewRedisCache(client, ledger, time.Minute)
	ctx := context.Background()

	client.Del(ctx, "stock:r1")

	level, err := cache.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if level != 10 {
		t.Errorf("expected 10, got %d", level)
	}

	// Second read must be served from Redis, not the ledger.
	ledger.mu.Lock()
	ledger.levels["r1"] = 99
	ledger.mu.Unlock()

	level, err = cache.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if level != 10 {
		t.Errorf("expected cached 10, got %d", level)
	}
	if n := ledger.fetches.Load(); n != 1 {
		t.Errorf("expected 1 ledger fetch, got %d", n)
	}
}

func TestRedisCacheSetAndInvalidate(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ledger := newStubLedger(map[string]int{"r2": 4})
	cache := NewRedisCache(client, ledger, time.Minute)
	ctx := context.Background()

	client.Del(ctx, "stock:r2")

	if err := cache.Set(ctx, "r2", 6); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	level, err := cache.Get(ctx, "r2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if level != 6 {
		t.Errorf("expected written-through 6, got %d", level)
	}

	if err := cache.Invalidate(ctx, "r2"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	level, err = cache.Get(ctx, "r2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if level != 4 {
		t.Errorf("expected refetched 4 after invalidate, got %d", level)
	}
}
