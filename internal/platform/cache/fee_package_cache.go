package cache

import (
	"sync"
	"time"

	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
)

const (
	// DefaultMaxEntries caps the cache before LRU eviction kicks in.
	DefaultMaxEntries = 100
	// DefaultTTL is how long a fetched package stays fresh.
	DefaultTTL = 5 * time.Minute
)

// FeePackageCache is a TTL + LRU cache for fee package details. It is an
// explicitly constructed instance owned by the fee service, never a package
// singleton, so tests stay isolated and tenants never share entries.
// The mutex is required here: unlike the console's single-threaded runtime,
// gin serves requests from many goroutines.
type FeePackageCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type cacheEntry struct {
	pkg        *domain.FeePackage
	storedAt   time.Time
	accessedAt time.Time
}

// NewFeePackageCache creates a cache with the given capacity and TTL.
// Non-positive values fall back to the defaults.
func NewFeePackageCache(maxEntries int, ttl time.Duration) *FeePackageCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FeePackageCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached package for the key, or nil on a miss or TTL
// expiry. A hit promotes the key to most recently used; an expired entry is
// removed on the spot.
func (c *FeePackageCache) Get(key string) *domain.FeePackage {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil
	}

	entry.accessedAt = c.now()
	return entry.pkg
}

// Set stores a package, evicting the least recently used entry first when at
// capacity.
func (c *FeePackageCache) Set(key string, pkg *domain.FeePackage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		var lruKey string
		var lruTime time.Time
		for k, e := range c.entries {
			if lruKey == "" || e.accessedAt.Before(lruTime) {
				lruKey = k
				lruTime = e.accessedAt
			}
		}
		if lruKey != "" {
			delete(c.entries, lruKey)
		}
	}

	now := c.now()
	c.entries[key] = &cacheEntry{pkg: pkg, storedAt: now, accessedAt: now}
}

// Clear removes every entry.
func (c *FeePackageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Len returns the current number of entries.
func (c *FeePackageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
