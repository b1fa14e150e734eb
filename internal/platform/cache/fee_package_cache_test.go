package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pkg(id string) *domain.FeePackage {
	return &domain.FeePackage{PackageID: id, PackageLabel: "Package " + id}
}

func TestGet_MissReturnsNil(t *testing.T) {
	c := NewFeePackageCache(10, time.Minute)
	assert.Nil(t, c.Get("absent"))
}

func TestSetAndGet(t *testing.T) {
	c := NewFeePackageCache(10, time.Minute)
	c.Set("pkg-1", pkg("pkg-1"))

	got := c.Get("pkg-1")
	require.NotNil(t, got)
	assert.Equal(t, "pkg-1", got.PackageID)
}

func TestGet_ExpiredEntryIsRemoved(t *testing.T) {
	c := NewFeePackageCache(10, time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("pkg-1", pkg("pkg-1"))

	current = current.Add(time.Minute + time.Second)
	assert.Nil(t, c.Get("pkg-1"))
	assert.Equal(t, 0, c.Len())
}

func TestSet_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewFeePackageCache(3, time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	for i := 1; i <= 3; i++ {
		c.Set(fmt.Sprintf("pkg-%d", i), pkg(fmt.Sprintf("pkg-%d", i)))
		current = current.Add(time.Second)
	}

	// Touch pkg-1 so pkg-2 becomes the LRU entry.
	require.NotNil(t, c.Get("pkg-1"))
	current = current.Add(time.Second)

	c.Set("pkg-4", pkg("pkg-4"))

	assert.Nil(t, c.Get("pkg-2"), "least recently used entry should be evicted")
	assert.NotNil(t, c.Get("pkg-1"))
	assert.NotNil(t, c.Get("pkg-3"))
	assert.NotNil(t, c.Get("pkg-4"))
	assert.Equal(t, 3, c.Len())
}

func TestSet_ExistingKeyDoesNotEvict(t *testing.T) {
	c := NewFeePackageCache(2, time.Minute)
	c.Set("pkg-1", pkg("pkg-1"))
	c.Set("pkg-2", pkg("pkg-2"))

	c.Set("pkg-1", pkg("pkg-1"))

	assert.NotNil(t, c.Get("pkg-1"))
	assert.NotNil(t, c.Get("pkg-2"))
}

func TestClear(t *testing.T) {
	c := NewFeePackageCache(10, time.Minute)
	c.Set("pkg-1", pkg("pkg-1"))
	c.Set("pkg-2", pkg("pkg-2"))

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Get("pkg-1"))
}

func TestDefaults(t *testing.T) {
	c := NewFeePackageCache(0, 0)
	assert.Equal(t, DefaultMaxEntries, c.maxEntries)
	assert.Equal(t, DefaultTTL, c.ttl)
}
