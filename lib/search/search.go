package search

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("search")

var queriesTotal = metrics.NewCounter("dshop_search_queries_total")

// DefaultLimit is used when a search is called with limit <= 0
const DefaultLimit = 50

// Engine searches the products collection.
type Engine struct {
	store        store.IStore
	cache        *cache.Cache
	defaultLimit int
}

// NewEngine creates a search engine. c may be nil to disable result caching,
// defaultLimit <= 0 uses DefaultLimit.
func NewEngine(s store.IStore, c *cache.Cache, defaultLimit int) *Engine {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Engine{store: s, cache: c, defaultLimit: defaultLimit}
}

// Search returns up to limit products matching term, in collection order.
// A blank term returns no products.
func (e *Engine) Search(term string, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = e.defaultLimit
	}
	query := strings.ToLower(strings.TrimSpace(term))
	if query == "" {
		return []model.Product{}, nil
	}
	queriesTotal.Inc()

	docs, err := e.matches(query, limit)
	if err != nil {
		return nil, err
	}
	// decoded per call, cached documents stay private
	return store.DecodeAll[model.Product](docs)
}

func (e *Engine) matches(query string, limit int) ([]store.Document, error) {
	key := fmt.Sprintf("search|%d|%s", limit, query)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return v.([]store.Document), nil
		}
	}

	before, err := e.store.Stat(store.CollectionProducts)
	if err != nil {
		return nil, err
	}

	tokens := strings.Fields(query)
	docs, err := e.store.FindN(store.CollectionProducts, func(d store.Document) bool {
		return match(d, query, tokens)
	}, limit)
	if err != nil {
		return nil, err
	}
	Logger.Debugf("search %q matched %d products (limit %d)", query, len(docs), limit)

	if e.cache != nil {
		e.cache.SetIfCurrent(key, store.CollectionProducts, docs, before.WriteIdx, e.writeIdx)
	}
	return docs, nil
}

func (e *Engine) writeIdx() uint64 {
	info, err := e.store.Stat(store.CollectionProducts)
	if err != nil {
		return 0
	}
	return info.WriteIdx
}

// match reports whether a product matches the lowercased query
func match(d store.Document, query string, tokens []string) bool {
	fields := [3]string{
		strings.ToLower(d.String("title")),
		strings.ToLower(d.String("description")),
		strings.ToLower(d.String("category")),
	}

	for _, f := range fields {
		if strings.Contains(f, query) {
			return true
		}
	}

	for _, tok := range tokens {
		hit := false
		for _, f := range fields {
			if strings.Contains(f, tok) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return len(tokens) > 0
}
