package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
)

type stubLedger struct {
	mu      sync.Mutex
	levels  map[string]int
	fetches atomic.Int32
}

func newStubLedger(levels map[string]int) *stubLedger {
	return &stubLedger{levels: levels}
}

func (s *stubLedger) GetStockLevel(ctx context.Context, productID string) (int, error) {
	s.fetches.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	level, ok := s.levels[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	return level, nil
}

func (s *stubLedger) UpdateStockLevel(ctx context.Context, productID string, delta int, transactionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[productID] += delta
	return s.levels[productID], nil
}

func (s *stubLedger) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return nil, nil
}

func (s *stubLedger) ProductExists(ctx context.Context, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.levels[productID]
	return ok, nil
}

func TestMemoryCacheReadThrough(t *testing.T) {
	ledger := newStubLedger(map[string]int{"p1": 10})
	cache := NewMemoryCache(ledger, time.Minute)
	ctx := context.Background()

	level, err := cache.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if level != 10 {
		t.Errorf("expected 10, got %d", level)
	}

	// Second read must come from the cache.
	ledger.mu.Lock()
	ledger.levels["p1"] = 99
	ledger.mu.Unlock()

	level, err = cache.Get(ctx, "p1")
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

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ledger := newStubLedger(map[string]int{"p1": 10})
	cache := NewMemoryCache(ledger, time.Minute)

	now := time.Now()
	cache.now = func() time.Time { return now }

	if _, err := cache.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	ledger.mu.Lock()
	ledger.levels["p1"] = 3
	ledger.mu.Unlock()

	now = now.Add(2 * time.Minute)

	level, err := cache.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if level != 3 {
		t.Errorf("expected refetched 3 after expiry, got %d", level)
	}
}

func TestMemoryCacheWriteThrough(t *testing.T) {
	ledger := newStubLedger(map[string]int{"p1": 10})
	cache := NewMemoryCache(ledger, time.Minute)
	ctx := context.Background()

	if err := cache.Set(ctx, "p1", 6); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	level, err := cache.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if level != 6 {
		t.Errorf("expected written-through 6, got %d", level)
	}
	if n := ledger.fetches.Load(); n != 0 {
		t.Errorf("expected no ledger fetch after write-through, got %d", n)
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ledger := newStubLedger(map[string]int{"p1": 10})
	cache := NewMemoryCache(ledger, time.Minute)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "p1"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if err := cache.Invalidate(ctx, "p1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, err := cache.Get(ctx, "p1"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if n := ledger.fetches.Load(); n != 2 {
		t.Errorf("expected refetch after invalidate, got %d fetches", n)
	}
}

func TestMemoryCacheUnknownProduct(t *testing.T) {
	ledger := newStubLedger(map[string]int{})
	cache := NewMemoryCache(ledger, time.Minute)

	_, err := cache.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestMemoryCacheConcurrentMissesFetchOnce(t *testing.T) {
	ledger := newStubLedger(map[string]int{"p1": 10})
	cache := NewMemoryCache(ledger, time.Minute)

	const readers = 20
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			level, err := cache.Get(context.Background(), "p1")
			if err != nil {
				t.Errorf("get failed: %v", err)
				return
			}
			if level != 10 {
				t.Errorf("expected 10, got %d", level)
			}
		}()
	}
	wg.Wait()

	// singleflight collapses the burst; a stray second fetch can happen when
	// a reader arrives after the first flight completed, but not one per
	// reader.
	if n := ledger.fetches.Load(); n > 2 {
		t.Errorf("expected at most 2 ledger fetches, got %d", n)
	}
}
