package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is the byte-level cache contract the tiers compose over
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type l1Entry struct {
	data      []byte
	expiresAt time.Time
}

// TieredCache layers a bounded in-process LRU in front of a shared backing
// store. The L1 tier shaves the Redis round-trip off repeat lookups within
// one process; entries honor the same TTL as the backing write, so L1 never
// outlives the shared entry it shadows. Invalidation deletes from both
// tiers, though other processes' L1 entries drain only by TTL.
type TieredCache struct {
	inner Store

	mu sync.Mutex
	l1 *lru.Cache[string, l1Entry]
}

// NewTieredCache wraps inner with an LRU of at most size entries. A size of
// zero or less disables the L1 tier and returns a passthrough.
func NewTieredCache(inner Store, size int) (*TieredCache, error) {
	t := &TieredCache{inner: inner}
	if size > 0 {
		l1, err := lru.New[string, l1Entry](size)
		if err != nil {
			return nil, err
		}
		t.l1 = l1
	}
	return t, nil
}

// Get checks the L1 tier, then the backing store. A backing hit repopulates
// L1 with the remaining TTL unknown, so the shorter member TTL is assumed
// conservatively by storing without refreshing expiry.
func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if t.l1 != nil {
		t.mu.Lock()
		if e, ok := t.l1.Get(key); ok {
			if time.Now().Before(e.expiresAt) {
				t.mu.Unlock()
				return e.data, true, nil
			}
			t.l1.Remove(key)
		}
		t.mu.Unlock()
	}

	return t.inner.Get(ctx, key)
}

// Set writes through to the backing store and mirrors into L1
func (t *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if t.l1 != nil && ttl > 0 {
		t.mu.Lock()
		t.l1.Add(key, l1Entry{data: value, expiresAt: time.Now().Add(ttl)})
		t.mu.Unlock()
	}
	return t.inner.Set(ctx, key, value, ttl)
}

// Delete removes keys from both tiers
func (t *TieredCache) Delete(ctx context.Context, keys ...string) error {
	if t.l1 != nil {
		t.mu.Lock()
		for _, k := range keys {
			t.l1.Remove(k)
		}
		t.mu.Unlock()
	}
	return t.inner.Delete(ctx, keys...)
}

// Len returns the number of live L1 entries
func (t *TieredCache) Len() int {
	if t.l1 == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.l1.Len()
}
