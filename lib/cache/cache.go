package cache

import (
	"github.com/ValentinKolb/dShop/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("cache")

var (
	hitsTotal      = metrics.NewCounter("dshop_cache_hits_total")
	missesTotal    = metrics.NewCounter("dshop_cache_misses_total")
	evictionsTotal = metrics.NewCounter("dshop_cache_evictions_total")
)

// --------------------------------------------------------------------------
// Constants and Options
// --------------------------------------------------------------------------

const (
	defaultTTL        = 5 * time.Minute
	defaultGCInterval = 30 * time.Second
)

// Options configures the cache behavior during initialization
type Options struct {
	TTL        time.Duration    // Default time to live (0 = use default: 5 min)
	GCInterval time.Duration    // Time between GC runs (0 = use default: 30 sec)
	Now        func() time.Time // Clock (nil = time.Now)
}

// DefaultOptions returns the default cache options
func DefaultOptions() *Options {
	return &Options{
		TTL:        defaultTTL,
		GCInterval: defaultGCInterval,
		Now:        time.Now,
	}
}

// --------------------------------------------------------------------------
// Entry Type
// --------------------------------------------------------------------------

// entry stores a cached value with metadata
type entry struct {
	Value    any
	Tag      string // Collection (or other source) the value was derived from
	ExpireAt int64  // Absolute deadline in unix nanoseconds
}

func (e entry) expired(now int64) bool {
	return now >= e.ExpireAt
}

// Stats reports counters of a single cache instance
type Stats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// --------------------------------------------------------------------------
// Cache
// --------------------------------------------------------------------------

// Cache is a concurrent TTL cache with tag based invalidation.
type Cache struct {
	data *xsync.MapOf[string, entry]
	ttl  time.Duration
	now  func() time.Time

	// expiry heap, guarded by heapMu
	heapMu sync.Mutex
	expiry *util.MapHeap[string]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	// garbage collection
	gcInterval  time.Duration
	gcIsRunning atomic.Bool
	stop        chan struct{}
	done        chan struct{}
}

// NewCache creates a new cache with the specified options (optional) and starts its GC.
func NewCache(opts *Options) *Cache {
	if opts == nil {
		opts = DefaultOptions()
	}
	c := &Cache{
		data:       xsync.NewMapOf[string, entry](),
		ttl:        opts.TTL,
		now:        opts.Now,
		expiry:     util.NewMapHeap[string](),
		gcInterval: opts.GCInterval,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}
	if c.gcInterval <= 0 {
		c.gcInterval = defaultGCInterval
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.startGC()
	return c
}

// TTL returns the default time to live of the cache
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns the value for a key. Expired entries count as a miss and are purged.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Cache) Get(key string) (any, bool) {
	now := c.now().UnixNano()

	var (
		value  any
		ok     bool
		purged bool
	)
	c.data.Compute(key, func(e entry, loaded bool) (entry, bool) {
		if !loaded {
			return e, true // set delete to true because else the value will be created
		}
		if e.expired(now) {
			purged = true
			return e, true
		}
		value, ok = e.Value, true
		return e, false
	})

	if purged {
		c.forget(key)
		c.evicted(1)
	}
	if ok {
		c.hits.Add(1)
		hitsTotal.Inc()
	} else {
		c.misses.Add(1)
		missesTotal.Inc()
	}
	return value, ok
}

// GetOrLoad implements the read-through path: on a miss the loader is called and
// its result stored under key with the given tag. Loader errors are returned and
// nothing is cached.
//
// Concurrent misses for the same key may call the loader more than once.
func (c *Cache) GetOrLoad(key, tag string, load func() (any, error)) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := load()
	if err != nil {
		return nil, err
	}
	c.Set(key, tag, value)
	return value, nil
}

// Len returns the number of entries, including expired ones not yet collected.
func (c *Cache) Len() int {
	return c.data.Size()
}

// Stats returns the counters of this cache instance
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:   c.data.Size(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set stores a value with the default TTL.
func (c *Cache) Set(key, tag string, value any) {
	c.SetTTL(key, tag, value, c.ttl)
}

// SetTTL stores a value that expires after ttl (ttl <= 0 uses the default TTL).
func (c *Cache) SetTTL(key, tag string, value any, ttl time.Duration) {
	e := c.newEntry(tag, value, ttl)
	c.data.Store(key, e)
	c.track(key, e.ExpireAt)
}

// SetIfAbsent stores the value only if no live entry exists for key.
// It returns true if the value was stored.
func (c *Cache) SetIfAbsent(key, tag string, value any, ttl time.Duration) bool {
	now := c.now().UnixNano()
	n := c.newEntry(tag, value, ttl)

	stored := false
	c.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
		if loaded && !old.expired(now) {
			return old, false
		}
		stored = true
		return n, false
	})

	if stored {
		c.track(key, n.ExpireAt)
	}
	return stored
}

// SetIfCurrent stores a value derived from a source with a version counter.
// seen is the version the value was computed from. The value is not kept if
// the source has moved on, which covers an invalidation racing with the fill.
func (c *Cache) SetIfCurrent(key, tag string, value any, seen uint64, version func() uint64) bool {
	if version() != seen {
		return false
	}
	c.Set(key, tag, value)
	if version() != seen {
		c.Delete(key)
		return false
	}
	return true
}

// Delete removes a key. It returns true if a live entry was removed.
func (c *Cache) Delete(key string) bool {
	return c.DeleteIf(key, func(any) bool { return true })
}

// DeleteIf atomically removes the entry for key if it is live and pred returns true for its value.
func (c *Cache) DeleteIf(key string, pred func(value any) bool) bool {
	now := c.now().UnixNano()

	deleted, gone := false, true
	c.data.Compute(key, func(e entry, loaded bool) (entry, bool) {
		if !loaded || e.expired(now) {
			return e, true
		}
		if !pred(e.Value) {
			gone = false
			return e, false
		}
		deleted = true
		return e, true
	})

	if gone {
		c.forget(key)
	}
	return deleted
}

// Invalidate removes every entry carrying the given tag and returns how many were removed.
func (c *Cache) Invalidate(tag string) int {
	var keys []string
	c.data.Range(func(key string, e entry) bool {
		if e.Tag == tag {
			keys = append(keys, key)
		}
		return true
	})

	removed := 0
	for _, key := range keys {
		gone := true
		c.data.Compute(key, func(e entry, loaded bool) (entry, bool) {
			if !loaded {
				return e, true
			}
			// the key may have been rewritten with another tag in the meantime
			if e.Tag != tag {
				gone = false
				return e, false
			}
			removed++
			return e, true
		})
		if gone {
			c.forget(key)
		}
	}

	if removed > 0 {
		Logger.Debugf("invalidated %d entries for tag %s", removed, tag)
	}
	return removed
}

// Purge removes all entries
func (c *Cache) Purge() {
	c.data.Clear()

	c.heapMu.Lock()
	c.expiry = util.NewMapHeap[string]()
	c.heapMu.Unlock()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (c *Cache) newEntry(tag string, value any, ttl time.Duration) entry {
	if ttl <= 0 {
		ttl = c.ttl
	}
	return entry{
		Value:    value,
		Tag:      tag,
		ExpireAt: c.now().Add(ttl).UnixNano(),
	}
}

// track registers (or moves) the expiry deadline of a key in the gc heap
func (c *Cache) track(key string, expireAt int64) {
	c.heapMu.Lock()
	c.expiry.AddItem(key, expireAt)
	c.heapMu.Unlock()
}

// forget removes a key from the gc heap
func (c *Cache) forget(key string) {
	c.heapMu.Lock()
	c.expiry.RemoveByKey(key)
	c.heapMu.Unlock()
}

func (c *Cache) evicted(n int) {
	c.evictions.Add(uint64(n))
	evictionsTotal.Add(n)
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// startGC starts the garbage collector
// if the GC is already running, this function does nothing
func (c *Cache) startGC() {
	if c.gcIsRunning.CompareAndSwap(false, true) {
		go c.garbageCollector()
	}
}

// Close stops the garbage collector. The cache stays usable but expired keys
// are only removed on access afterward.
func (c *Cache) Close() error {
	if c.gcIsRunning.CompareAndSwap(true, false) {
		close(c.stop)
		<-c.done
	}
	return nil
}

// garbageCollector is the main garbage collection loop
// WARNING: this method should never be called directly! use startGC() and Close()
func (c *Cache) garbageCollector() {
	defer close(c.done)

	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.collect(); n > 0 {
				Logger.Debugf("gc removed %d expired entries", n)
			}
		}
	}
}

// collect removes all entries whose deadline has passed and returns how many were removed
func (c *Cache) collect() int {
	/*
		Note: We only read the clock once per gc cycle so the loop below terminates
		even if new entries keep expiring while it runs.
	*/
	now := c.now().UnixNano()
	removed := 0

	c.heapMu.Lock()
	defer c.heapMu.Unlock()

	for {
		next, exists := c.expiry.Peek()
		if !exists || next.Priority > now {
			break
		}
		key := next.Key

		var reschedule int64
		c.data.Compute(key, func(e entry, loaded bool) (entry, bool) {
			if !loaded {
				return e, true
			}
			// double-check: the entry may have been rewritten with a later deadline
			if !e.expired(now) {
				reschedule = e.ExpireAt
				return e, false
			}
			removed++
			return e, true
		})

		if reschedule != 0 {
			c.expiry.AddItem(key, reschedule)
		} else {
			c.expiry.RemoveByKey(key)
		}
	}

	if removed > 0 {
		c.evicted(removed)
	}
	return removed
}
