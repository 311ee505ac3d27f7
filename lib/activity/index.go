package activity

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("activity")

var rebuildsTotal = metrics.NewCounter("dshop_activity_index_rebuilds_total")

// signature is a cheap fingerprint of the activity collection
type signature struct {
	count int
	size  int64
}

// built is one immutable generation of the index
type built struct {
	sig    signature
	byUser *xsync.MapOf[string, []string]
}

// Index is a username -> activity ids index over the activity collection.
type Index struct {
	store store.IStore

	current atomic.Pointer[built]
	dirty   atomic.Bool
	buildMu sync.Mutex
}

// NewIndex creates an index over the activity collection of s.
// The index registers a write hook on s and is built on first use.
func NewIndex(s store.IStore) *Index {
	ix := &Index{store: s}
	s.OnWrite(func(collection string) {
		if collection == store.CollectionActivity {
			ix.dirty.Store(true)
		}
	})
	return ix
}

// IDsFor returns the ids of all activity records of username, newest first.
// The returned slice is owned by the caller.
func (ix *Index) IDsFor(username string) ([]string, error) {
	b, err := ix.ensure()
	if err != nil {
		return nil, err
	}
	ids, _ := b.byUser.Load(username)
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

// Users returns the number of users that have at least one activity record.
func (ix *Index) Users() (int, error) {
	b, err := ix.ensure()
	if err != nil {
		return 0, err
	}
	return b.byUser.Size(), nil
}

// ensure returns an index generation that matches the current collection
func (ix *Index) ensure() (*built, error) {
	sig, err := ix.signature()
	if err != nil {
		return nil, err
	}
	if b := ix.current.Load(); b != nil && !ix.dirty.Load() && b.sig == sig {
		return b, nil
	}

	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	// another goroutine may have rebuilt while we waited
	sig, err = ix.signature()
	if err != nil {
		return nil, err
	}
	if b := ix.current.Load(); b != nil && !ix.dirty.Load() && b.sig == sig {
		return b, nil
	}

	// cleared before reading, so a write that lands during the rebuild marks it dirty again
	ix.dirty.Store(false)
	docs, err := ix.store.ReadCollection(store.CollectionActivity)
	if err != nil {
		ix.dirty.Store(true)
		return nil, err
	}

	b := &built{sig: sig, byUser: build(docs)}
	ix.current.Store(b)
	rebuildsTotal.Inc()
	Logger.Debugf("rebuilt activity index: %d records, %d users", len(docs), b.byUser.Size())
	return b, nil
}

func (ix *Index) signature() (signature, error) {
	info, err := ix.store.Stat(store.CollectionActivity)
	if err != nil {
		return signature{}, err
	}
	return signature{count: info.Count, size: info.SizeBytes}, nil
}

type entry struct {
	id string
	ts time.Time
}

// build groups the records by username and sorts every group by timestamp, newest first.
// Records with equal timestamps are ordered by id.
func build(docs []store.Document) *xsync.MapOf[string, []string] {
	groups := make(map[string][]entry)
	for _, d := range docs {
		username := d.String("username")
		if username == "" || d.ID() == "" {
			continue
		}
		groups[username] = append(groups[username], entry{id: d.ID(), ts: recordTime(d)})
	}

	byUser := xsync.NewMapOf[string, []string]()
	for username, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			if !entries[i].ts.Equal(entries[j].ts) {
				return entries[i].ts.After(entries[j].ts)
			}
			return entries[i].id < entries[j].id
		})
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.id
		}
		byUser.Store(username, ids)
	}
	return byUser
}

// recordTime returns the timestamp of a record, falling back to createdAt.
// Unparseable values sort last.
func recordTime(d store.Document) time.Time {
	for _, field := range []string{"timestamp", store.FieldCreatedAt} {
		if v := d.String(field); v != "" {
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
