package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewCache(&Options{TTL: time.Minute, GCInterval: time.Hour, Now: clock.Now})
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)

	_, ok := c.Get("collection|products")
	assert.False(t, ok)

	c.Set("collection|products", "products", []string{"a"})
	v, ok := c.Get("collection|products")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, v)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestCache_ExpiredEntryIsMissAndPurged(t *testing.T) {
	c, clock := newTestCache(t)

	c.Set("k", "products", 1)
	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry should still be live before the deadline")

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry must be a miss at the deadline")
	assert.Equal(t, 0, c.Len(), "expired entry must be purged on lookup")
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCache_SetTTL(t *testing.T) {
	c, clock := newTestCache(t)

	c.SetTTL("short", "t", 1, time.Second)
	c.SetTTL("default", "t", 2, 0)

	clock.Advance(2 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("default")
	assert.True(t, ok)
}

func TestCache_InvalidateByTag(t *testing.T) {
	c, _ := newTestCache(t)

	c.Set("collection|products", "products", 1)
	c.Set("search|50|shirt", "products", 2)
	c.Set("search|10|hat", "products", 3)
	c.Set("collection|orders", "orders", 4)

	removed := c.Invalidate("products")
	assert.Equal(t, 3, removed)

	for _, key := range []string{"collection|products", "search|50|shirt", "search|10|hat"} {
		_, ok := c.Get(key)
		assert.False(t, ok, "key %s must be invalidated", key)
	}
	_, ok := c.Get("collection|orders")
	assert.True(t, ok, "entries of other tags must survive")

	assert.Equal(t, 0, c.Invalidate("unknown"))
}

func TestCache_GetOrLoad(t *testing.T) {
	c, _ := newTestCache(t)

	calls := 0
	loader := func() (any, error) {
		calls++
		return "loaded", nil
	}

	v, err := c.GetOrLoad("k", "t", loader)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)

	v, err = c.GetOrLoad("k", "t", loader)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, 1, calls, "second call must be served from the cache")

	boom := errors.New("boom")
	_, err = c.GetOrLoad("failing", "t", func() (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("failing")
	assert.False(t, ok, "failed loads must not be cached")
}

func TestCache_SetIfAbsent(t *testing.T) {
	c, clock := newTestCache(t)

	assert.True(t, c.SetIfAbsent("lock", "locks", "owner-1", time.Second))
	assert.False(t, c.SetIfAbsent("lock", "locks", "owner-2", time.Second))

	v, _ := c.Get("lock")
	assert.Equal(t, "owner-1", v)

	// an expired entry counts as absent
	clock.Advance(time.Second)
	assert.True(t, c.SetIfAbsent("lock", "locks", "owner-2", time.Second))
	v, _ = c.Get("lock")
	assert.Equal(t, "owner-2", v)
}

func TestCache_DeleteIf(t *testing.T) {
	c, _ := newTestCache(t)
	c.Set("lock", "locks", "owner-1")

	assert.False(t, c.DeleteIf("lock", func(v any) bool { return v == "owner-2" }))
	_, ok := c.Get("lock")
	assert.True(t, ok)

	assert.True(t, c.DeleteIf("lock", func(v any) bool { return v == "owner-1" }))
	_, ok = c.Get("lock")
	assert.False(t, ok)

	assert.False(t, c.Delete("lock"))
}

func TestCache_SetIfCurrent(t *testing.T) {
	c, _ := newTestCache(t)

	version := uint64(3)
	assert.True(t, c.SetIfCurrent("search|50|hat", "products", 1, 3, func() uint64 { return version }))
	_, ok := c.Get("search|50|hat")
	assert.True(t, ok)

	assert.False(t, c.SetIfCurrent("search|50|cap", "products", 1, 2, func() uint64 { return version }))
	_, ok = c.Get("search|50|cap")
	assert.False(t, ok, "values computed from an old version are not stored")

	// a write that lands between the check and the store removes the entry again
	calls := 0
	racing := func() uint64 {
		calls++
		if calls > 1 {
			return 4
		}
		return 3
	}
	assert.False(t, c.SetIfCurrent("search|50|mug", "products", 1, 3, racing))
	_, ok = c.Get("search|50|mug")
	assert.False(t, ok)
}

func TestCache_GarbageCollection(t *testing.T) {
	c, clock := newTestCache(t)

	c.SetTTL("a", "t", 1, time.Second)
	c.SetTTL("b", "t", 2, time.Second)
	c.SetTTL("c", "t", 3, time.Hour)

	// rewriting "b" moves its deadline back, gc must keep it
	clock.Advance(500 * time.Millisecond)
	c.SetTTL("b", "t", 2, time.Hour)

	clock.Advance(time.Second)
	assert.Equal(t, 1, c.collect())
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestCache_BackgroundGC(t *testing.T) {
	c := NewCache(&Options{TTL: 10 * time.Millisecond, GCInterval: 5 * time.Millisecond})
	defer c.Close()

	for _, k := range []string{"a", "b", "c"} {
		c.Set(k, "t", k)
	}

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCache_Purge(t *testing.T) {
	c, _ := newTestCache(t)
	c.Set("a", "t", 1)
	c.Set("b", "u", 2)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := string(rune('a' + i%10))
				c.Set(key, "t", i)
				c.Get(key)
				if i%50 == 0 {
					c.Invalidate("t")
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 10)
}
