// Package cache implements the process-local, read-through TTL cache that sits
// in front of the document store.
//
// Every entry carries a tag (normally the name of the collection its value was
// derived from) and an absolute expiry deadline. Reads past the deadline are
// treated as misses and purge the entry. Writes to a collection call
// Invalidate(tag), which removes every entry derived from that collection,
// including derived queries such as search results or activity pages.
//
// Implementation Details:
//
//   - Storage: entries live in a concurrent xsync.MapOf. All conditional
//     updates (expiry checks, SetIfAbsent, DeleteIf) run inside MapOf.Compute so
//     they are atomic per key.
//
//   - Garbage collection: a background goroutine keeps a util.MapHeap of expiry
//     deadlines and removes expired entries every GC interval, so keys that are
//     never read again do not accumulate. The heap is only a hint; each removal
//     double-checks the entry's deadline inside Compute.
//
//   - Metrics: hits, misses and evictions are counted per instance (Stats) and
//     exported process-wide through VictoriaMetrics counters.
//
// The cache is not shared across processes. Running more than one dShop
// process against the same data directory breaks coherence.
package cache
