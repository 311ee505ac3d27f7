package activity

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one page of a user's activity log, newest first.
type Page struct {
	Items      []model.ActivityRecord `json:"items"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"pageSize"`
	Total      int                    `json:"total"`
	TotalPages int                    `json:"totalPages"`
}

// cachedPage is what the cache keeps for a page; records are decoded per call
type cachedPage struct {
	docs  []store.Document
	total int
}

// Log records user activity and serves it per user.
type Log struct {
	store store.IStore
	index *Index
	cache *cache.Cache
	now   func() time.Time
}

// NewLog creates an activity log. c may be nil to disable page caching.
func NewLog(s store.IStore, ix *Index, c *cache.Cache) *Log {
	return &Log{store: s, index: ix, cache: c, now: time.Now}
}

// Record appends an activity record for username.
func (l *Log) Record(username, action string, details map[string]any) (model.ActivityRecord, error) {
	if username == "" || action == "" {
		return model.ActivityRecord{}, store.NewError(store.ErrCValidation, "activity.record", "username and action are required")
	}
	if details == nil {
		details = map[string]any{}
	}

	doc, err := store.Encode(model.ActivityRecord{
		Username:  username,
		Action:    action,
		Details:   details,
		Timestamp: l.now().UTC().Format(store.TimeFormat),
	})
	if err != nil {
		return model.ActivityRecord{}, err
	}
	delete(doc, store.FieldID)

	stored, err := l.store.AppendDocument(store.CollectionActivity, doc)
	if err != nil {
		return model.ActivityRecord{}, err
	}
	return store.Decode[model.ActivityRecord](stored)
}

// ForUser returns one page (1-based) of username's activity records, newest first.
// page < 1 is treated as 1, pageSize <= 0 as DefaultPageSize and values above MaxPageSize are capped.
func (l *Log) ForUser(username string, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	cp, err := l.loadPage(username, page, pageSize)
	if err != nil {
		return Page{}, err
	}

	items, err := store.DecodeAll[model.ActivityRecord](cp.docs)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      cp.total,
		TotalPages: (cp.total + pageSize - 1) / pageSize,
	}, nil
}

func (l *Log) loadPage(username string, page, pageSize int) (cachedPage, error) {
	key := fmt.Sprintf("activity|%s|%d|%d", username, page, pageSize)
	if l.cache != nil {
		if v, ok := l.cache.Get(key); ok {
			return v.(cachedPage), nil
		}
	}

	before, err := l.store.Stat(store.CollectionActivity)
	if err != nil {
		return cachedPage{}, err
	}

	ids, err := l.index.IDsFor(username)
	if err != nil {
		return cachedPage{}, err
	}

	cp := cachedPage{docs: []store.Document{}, total: len(ids)}
	start := (page - 1) * pageSize
	if start < len(ids) {
		end := min(start+pageSize, len(ids))
		cp.docs, err = l.hydrate(ids[start:end])
		if err != nil {
			return cachedPage{}, err
		}
	}

	if l.cache != nil {
		l.cache.SetIfCurrent(key, store.CollectionActivity, cp, before.WriteIdx, l.writeIdx)
	}
	return cp, nil
}

// writeIdx returns the write index of the activity collection, 0 if it can not be read
func (l *Log) writeIdx() uint64 {
	info, err := l.store.Stat(store.CollectionActivity)
	if err != nil {
		return 0
	}
	return info.WriteIdx
}

// hydrate loads the records with the given ids, in the order of ids
func (l *Log) hydrate(ids []string) ([]store.Document, error) {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}

	found, err := l.store.Find(store.CollectionActivity, func(d store.Document) bool {
		_, ok := pos[d.ID()]
		return ok
	})
	if err != nil {
		return nil, err
	}

	docs := make([]store.Document, len(ids))
	for _, d := range found {
		docs[pos[d.ID()]] = d
	}

	// records deleted since the index was built are skipped
	out := docs[:0]
	for _, d := range docs {
		if d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}
