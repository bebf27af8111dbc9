// Package keylock provides timeout-bounded mutual exclusion scoped to an
// arbitrary string key. Entries are reference counted and removed as soon as
// no holder or waiter remains, so the arena does not grow with the number of
// keys ever seen.
package keylock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when the lock is not acquired within the bound.
var ErrTimeout = errors.New("keylock: acquire timed out")

type entry struct {
	sem  chan struct{} // binary semaphore, capacity 1
	refs int           // holders + waiters, guarded by KeyedLock.mu
}

// KeyedLock is an arena of per-key binary semaphores.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *KeyedLock {
	return &KeyedLock{entries: make(map[string]*entry)}
}

// Acquire blocks until the lock for key is free, the timeout elapses, or ctx
// is cancelled. Operations on other keys are never blocked. The returned
// handle releases exactly once regardless of how many times Release is called.
func (l *KeyedLock) Acquire(ctx context.Context, key string, timeout time.Duration) (*Handle, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return &Handle{lock: l, key: key, e: e}, nil
	case <-timer.C:
		l.unref(key, e)
		return nil, ErrTimeout
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}
}

// Len reports the number of live entries, i.e. keys with a holder or waiter.
func (l *KeyedLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *KeyedLock) unref(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Handle represents a held lock.
type Handle struct {
	lock *KeyedLock
	key  string
	e    *entry
	once sync.Once
}

// Release frees the lock. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() {
		<-h.e.sem
		h.lock.unref(h.key, h.e)
	})
}
