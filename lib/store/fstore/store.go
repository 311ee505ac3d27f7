package fstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/afero"
	"io/fs"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("store")

var validName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Options configures a file store.
type Options struct {
	Fs    afero.Fs         // Filesystem holding the collection files (required)
	Cache *cache.Cache     // Read-through cache (nil = no caching)
	Now   func() time.Time // Clock for createdAt/updatedAt (nil = time.Now)
	NewID func() string    // Id generator (nil = random UUID v4)
}

type storeImpl struct {
	fs    afero.Fs
	cache *cache.Cache
	now   func() time.Time
	newID func() string

	// write index, incremented on every successful write
	index    atomic.Uint64
	writeIdx *xsync.MapOf[string, uint64]

	// one lock per collection: serializes a file write + cache invalidation
	// against cache fills, it does NOT make read-modify-write sequences atomic
	locks *xsync.MapOf[string, *sync.RWMutex]

	hooksMu sync.RWMutex
	hooks   []store.WriteHook
}

// NewFileStore creates a document store that keeps one <collection>.json file
// per collection in the root of opts.Fs.
func NewFileStore(opts Options) store.IStore {
	s := &storeImpl{
		fs:       opts.Fs,
		cache:    opts.Cache,
		now:      opts.Now,
		newID:    opts.NewID,
		writeIdx: xsync.NewMapOf[string, uint64](),
		locks:    xsync.NewMapOf[string, *sync.RWMutex](),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// NewDirStore creates a file store rooted at dir on the OS filesystem.
// The directory is created if it does not exist.
func NewDirStore(dir string, c *cache.Cache) (store.IStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &store.Error{Code: store.ErrCWriteFailed, Op: "init", Msg: fmt.Sprintf("can not create data dir %s", dir), Err: err}
	}
	return NewFileStore(Options{
		Fs:    afero.NewBasePathFs(afero.NewOsFs(), dir),
		Cache: c,
	}), nil
}

// incAndGetIndex increments the write index and returns the new value.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) ReadCollection(name string) ([]store.Document, error) {
	if err := checkName("read", name); err != nil {
		return nil, err
	}
	docs, err := s.load(name)
	if err != nil {
		return nil, err
	}
	return store.CloneAll(docs), nil
}

func (s *storeImpl) WriteCollection(name string, docs []store.Document) error {
	if err := checkName("write", name); err != nil {
		return err
	}
	if docs == nil {
		docs = []store.Document{}
	}
	for i, d := range docs {
		if d == nil {
			return &store.Error{Code: store.ErrCValidation, Op: "write", Collection: name, Msg: fmt.Sprintf("document at position %d is nil", i)}
		}
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		countError(name)
		return &store.Error{Code: store.ErrCWriteFailed, Op: "write", Collection: name, Msg: "can not serialize collection", Err: err}
	}

	lock := s.lockFor(name)
	lock.Lock()
	err = s.writeFile(name, data)
	if err == nil {
		s.writeIdx.Store(name, s.incAndGetIndex())
		if s.cache != nil {
			s.cache.Invalidate(name)
		}
	}
	lock.Unlock()

	if err != nil {
		countError(name)
		Logger.Errorf("write of collection %s failed: %v", name, err)
		return &store.Error{Code: store.ErrCWriteFailed, Op: "write", Collection: name, Msg: "can not write collection file", Err: err}
	}

	metrics.GetOrCreateCounter(fmt.Sprintf(`dshop_store_writes_total{collection=%q}`, name)).Inc()
	Logger.Debugf("wrote %d documents to %s", len(docs), name)
	s.fireHooks(name)
	return nil
}

func (s *storeImpl) AppendDocument(name string, doc store.Document) (store.Document, error) {
	if err := checkName("append", name); err != nil {
		return nil, err
	}

	doc = doc.Clone()
	if doc == nil {
		doc = store.Document{}
	}
	if doc.ID() == "" {
		doc[store.FieldID] = s.newID()
	}
	if _, ok := doc[store.FieldCreatedAt]; !ok {
		doc[store.FieldCreatedAt] = s.timestamp()
	}

	docs, err := s.ReadCollection(name)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.ID() == doc.ID() {
			return nil, &store.Error{Code: store.ErrCValidation, Op: "append", Collection: name, ID: doc.ID(), Msg: "duplicate document id"}
		}
	}

	docs = append(docs, doc)
	if err := s.WriteCollection(name, docs); err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

func (s *storeImpl) FindByID(name, id string) (store.Document, error) {
	doc, err := s.FindOne(name, func(d store.Document) bool { return d.ID() == id })
	if store.IsNotFound(err) {
		return nil, store.NotFound("find", name, id)
	}
	return doc, err
}

// Find and FindOne match against the shared documents and only copy the matches.
func (s *storeImpl) Find(name string, match func(store.Document) bool) ([]store.Document, error) {
	return s.FindN(name, match, 0)
}

func (s *storeImpl) FindN(name string, match func(store.Document) bool, limit int) ([]store.Document, error) {
	if err := checkName("find", name); err != nil {
		return nil, err
	}
	docs, err := s.load(name)
	if err != nil {
		return nil, err
	}
	out := make([]store.Document, 0)
	for _, d := range docs {
		if limit > 0 && len(out) >= limit {
			break
		}
		if match(d) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (s *storeImpl) FindOne(name string, match func(store.Document) bool) (store.Document, error) {
	if err := checkName("find", name); err != nil {
		return nil, err
	}
	docs, err := s.load(name)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if match(d) {
			return d.Clone(), nil
		}
	}
	return nil, &store.Error{Code: store.ErrCNotFound, Op: "find", Collection: name, Msg: "no matching document"}
}

func (s *storeImpl) UpdateByID(name, id string, patch store.Document) (store.Document, error) {
	docs, err := s.ReadCollection(name)
	if err != nil {
		return nil, err
	}

	pos := indexOf(docs, id)
	if pos < 0 {
		return nil, store.NotFound("update", name, id)
	}

	updated := docs[pos]
	for k, v := range patch.Clone() {
		if k == store.FieldID {
			continue // ids are immutable
		}
		updated[k] = v
	}
	updated[store.FieldUpdatedAt] = s.timestamp()

	if err := s.WriteCollection(name, docs); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

func (s *storeImpl) DeleteByID(name, id string) error {
	docs, err := s.ReadCollection(name)
	if err != nil {
		return err
	}

	pos := indexOf(docs, id)
	if pos < 0 {
		return store.NotFound("delete", name, id)
	}

	docs = append(docs[:pos], docs[pos+1:]...)
	return s.WriteCollection(name, docs)
}

func (s *storeImpl) Stat(name string) (store.CollectionInfo, error) {
	if err := checkName("stat", name); err != nil {
		return store.CollectionInfo{}, err
	}

	docs, err := s.load(name)
	if err != nil {
		return store.CollectionInfo{}, err
	}

	info := store.CollectionInfo{Name: name, Count: len(docs)}
	info.WriteIdx, _ = s.writeIdx.Load(name)

	fi, err := s.fs.Stat(fileName(name))
	switch {
	case err == nil:
		info.Exists = true
		info.SizeBytes = fi.Size()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return info, &store.Error{Code: store.ErrCReadFailed, Op: "stat", Collection: name, Msg: "can not stat collection file", Err: err}
	}
	return info, nil
}

func (s *storeImpl) OnWrite(hook store.WriteHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// load returns the (shared, not cloned) documents of a collection, from the cache if possible
func (s *storeImpl) load(name string) ([]store.Document, error) {
	key := cacheKey(name)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.([]store.Document), nil
		}
	}

	lock := s.lockFor(name)
	lock.RLock()
	defer lock.RUnlock()

	metrics.GetOrCreateCounter(fmt.Sprintf(`dshop_store_reads_total{collection=%q}`, name)).Inc()
	docs, err := s.readFile(name)
	if err != nil {
		countError(name)
		return nil, err
	}

	// filled under the read lock so a concurrent write can not be overtaken by stale data
	if s.cache != nil {
		s.cache.Set(key, name, docs)
	}
	return docs, nil
}

// readFile reads and parses a collection file. A missing file is an empty collection.
func (s *storeImpl) readFile(name string) ([]store.Document, error) {
	data, err := afero.ReadFile(s.fs, fileName(name))
	if errors.Is(err, fs.ErrNotExist) {
		return []store.Document{}, nil
	}
	if err != nil {
		return nil, &store.Error{Code: store.ErrCReadFailed, Op: "read", Collection: name, Msg: "can not read collection file", Err: err}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		Logger.Errorf("collection %s is corrupt: content is not a json array", name)
		return nil, &store.Error{Code: store.ErrCCorruptData, Op: "read", Collection: name, Msg: "collection file is not a json array"}
	}

	var docs []store.Document
	if err := json.Unmarshal(trimmed, &docs); err != nil {
		Logger.Errorf("collection %s is corrupt: %v", name, err)
		return nil, &store.Error{Code: store.ErrCCorruptData, Op: "read", Collection: name, Msg: "can not parse collection file", Err: err}
	}
	for i, d := range docs {
		if d == nil {
			return nil, &store.Error{Code: store.ErrCCorruptData, Op: "read", Collection: name, Msg: fmt.Sprintf("element %d is not a json object", i)}
		}
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

// writeFile atomically replaces a collection file by writing a temp file and renaming it
func (s *storeImpl) writeFile(name string, data []byte) error {
	tmp, err := afero.TempFile(s.fs, "/", "."+name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return err
	}
	if err := s.fs.Rename(tmpName, fileName(name)); err != nil {
		_ = s.fs.Remove(tmpName)
		return err
	}
	return nil
}

func (s *storeImpl) lockFor(name string) *sync.RWMutex {
	lock, _ := s.locks.LoadOrCompute(name, func() *sync.RWMutex { return &sync.RWMutex{} })
	return lock
}

func (s *storeImpl) fireHooks(name string) {
	s.hooksMu.RLock()
	hooks := make([]store.WriteHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(name)
	}
}

func (s *storeImpl) timestamp() string {
	return s.now().UTC().Format(store.TimeFormat)
}

func checkName(op, name string) error {
	if !validName.MatchString(name) {
		return &store.Error{Code: store.ErrCValidation, Op: op, Collection: name, Msg: "invalid collection name"}
	}
	return nil
}

func indexOf(docs []store.Document, id string) int {
	for i, d := range docs {
		if d.ID() == id {
			return i
		}
	}
	return -1
}

func countError(name string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dshop_store_errors_total{collection=%q}`, name)).Inc()
}

func fileName(name string) string {
	return "/" + name + ".json"
}

func cacheKey(name string) string {
	return "collection|" + name
}
