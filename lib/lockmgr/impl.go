package lockmgr

import (
	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var Logger = logger.GetLogger("lockmgr")

const (
	// ownerIDBytes is the number of random bytes in an owner id
	ownerIDBytes = 32

	// lockTag tags every lock entry in the cache. It is not a valid
	// collection name, so no store write can invalidate it.
	lockTag = "|lock"
)

type lockMgrImpl struct {
	cache *cache.Cache
}

// NewLockManager creates a lock manager that keeps its locks in c.
func NewLockManager(c *cache.Cache) ILockManager {
	return &lockMgrImpl{
		cache: c,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string, timeout time.Duration) (bool, string, error) {
	ownerID, err := util.RandomHex(ownerIDBytes)
	if err != nil {
		return false, "", err
	}

	// SetIfAbsent is atomic: only one caller can create the entry while it is live
	if !lm.cache.SetIfAbsent(lockKey(key), lockTag, ownerID, timeout) {
		Logger.Debugf("lock %s is held by someone else", key)
		return false, "", nil
	}
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID string) (bool, error) {
	if _, ok := lm.cache.Get(lockKey(key)); !ok {
		return true, nil
	}

	// only the owner may delete the entry
	released := lm.cache.DeleteIf(lockKey(key), func(value any) bool {
		owner, _ := value.(string)
		return owner == ownerID
	})
	return released, nil
}

func lockKey(key string) string {
	return "lock|" + key
}
