// Package lockmgr implements short lived, process local locks on top of the
// shop cache (lib/cache). It is used to keep two payment attempts for the
// same order from running at the same time.
//
// The lock manager has no internal state besides the cache it was created
// with, so it is safe to create several lock managers over the same cache.
//
// Core Functionality:
//   - Lock acquisition with ownership verification
//   - Automatic lock expiration through the entry TTL
//   - Safe release operations that verify ownership
//
// Implementation Approach:
//
//   - Lock Acquisition: a lock is a cache entry "lock|<key>" holding a random
//     owner id. Cache.SetIfAbsent guarantees that only one requester can create
//     the entry while it is live.
//
//   - Timeouts: the entry expires after the given timeout, so a lock is
//     released even if its holder never calls ReleaseLock.
//
//   - Safe Release: ReleaseLock deletes the entry through Cache.DeleteIf, which
//     compares the stored owner id atomically before deleting.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager(c)
//
//	acquired, ownerID, err := locks.AcquireLock("payment|o-1", 30*time.Second)
//	if err != nil {
//	    // Handle error
//	}
//
//	if acquired {
//	    // Use the resource safely
//	    defer locks.ReleaseLock("payment|o-1", ownerID)
//	}
package lockmgr
