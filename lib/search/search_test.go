package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dShop/lib/cache"
	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/ValentinKolb/dShop/lib/store/fstore"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id, title, description, category string) store.Document {
	return store.Document{"id": id, "title": title, "description": description, "category": category, "price": 10.0, "inStock": true}
}

var catalog = []store.Document{
	product("p1", "Blue Cotton Shirt", "A soft shirt for summer", "Clothing"),
	product("p2", "Red Wool Hat", "Keeps you warm", "Accessories"),
	product("p3", "Coffee Mug", "Ceramic mug, blue glaze", "Kitchen"),
	product("p4", "Summer Dress", "Light cotton", "Clothing"),
}

func newTestEngine(t *testing.T) (*Engine, store.IStore) {
	t.Helper()
	c := cache.NewCache(&cache.Options{TTL: time.Minute, GCInterval: time.Minute})
	t.Cleanup(func() { _ = c.Close() })
	s := fstore.NewFileStore(fstore.Options{Fs: afero.NewMemMapFs(), Cache: c})
	require.NoError(t, s.WriteCollection(store.CollectionProducts, catalog))
	return NewEngine(s, c, 0), s
}

func ids(t *testing.T, e *Engine, term string, limit int) []string {
	t.Helper()
	products, err := e.Search(term, limit)
	require.NoError(t, err)
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestSearch_Matching(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		name string
		term string
		want []string
	}{
		{"PhraseInTitle", "cotton shirt", []string{"p1"}},
		{"CaseInsensitive", "COFFEE", []string{"p3"}},
		{"Category", "clothing", []string{"p1", "p4"}},
		{"Description", "warm", []string{"p2"}},
		{"TokensAcrossFields", "blue kitchen", []string{"p3"}},
		{"TokensInAnyOrder", "shirt blue", []string{"p1"}},
		{"AllTokensRequired", "blue wool", []string{}},
		{"ExtraWhitespace", "  summer   cotton ", []string{"p1", "p4"}},
		{"NoMatch", "bicycle", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(t, e, tt.term, 0))
		})
	}
}

func TestSearch_BlankTerm(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, term := range []string{"", "   ", "\t\n"} {
		products, err := e.Search(term, 10)
		require.NoError(t, err)
		assert.NotNil(t, products)
		assert.Empty(t, products)
	}
}

func TestSearch_LimitStopsInCollectionOrder(t *testing.T) {
	e, s := newTestEngine(t)

	var many []store.Document
	for i := 0; i < 120; i++ {
		many = append(many, product(fmt.Sprintf("p%03d", i), "Sock", "", "Clothing"))
	}
	require.NoError(t, s.WriteCollection(store.CollectionProducts, many))

	got := ids(t, e, "sock", 0)
	require.Len(t, got, DefaultLimit)
	assert.Equal(t, "p000", got[0])
	assert.Equal(t, "p049", got[DefaultLimit-1])

	got = ids(t, e, "sock", 3)
	assert.Equal(t, []string{"p000", "p001", "p002"}, got)
}

func TestSearch_ResultsInvalidatedByProductWrites(t *testing.T) {
	e, s := newTestEngine(t)

	require.Equal(t, []string{"p2"}, ids(t, e, "hat", 0))

	_, err := s.AppendDocument(store.CollectionProducts, product("p5", "Straw Hat", "", "Accessories"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p5"}, ids(t, e, "hat", 0))

	_, err = s.UpdateByID(store.CollectionProducts, "p2", store.Document{"title": "Red Wool Beanie"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p5"}, ids(t, e, "hat", 0))

	require.NoError(t, s.WriteCollection(store.CollectionProducts, nil))
	assert.Empty(t, ids(t, e, "hat", 0))
}

func TestSearch_CachedResultsAreNotShared(t *testing.T) {
	e, _ := newTestEngine(t)

	first, err := e.Search("mug", 0)
	require.NoError(t, err)
	require.Len(t, first, 1)
	first[0].Title = "changed"

	second, err := e.Search("mug", 0)
	require.NoError(t, err)
	assert.Equal(t, "Coffee Mug", second[0].Title)
}

func TestSearch_WithoutCache(t *testing.T) {
	s := fstore.NewFileStore(fstore.Options{Fs: afero.NewMemMapFs()})
	require.NoError(t, s.WriteCollection(store.CollectionProducts, catalog))
	e := NewEngine(s, nil, 1)

	assert.Equal(t, []string{"p1"}, ids(t, e, "clothing", 0), "engine default limit applies")
}

// countingStore counts how often a FindN predicate is evaluated
type countingStore struct {
	store.IStore
	evaluated int
}

func (s *countingStore) FindN(name string, match func(store.Document) bool, limit int) ([]store.Document, error) {
	return s.IStore.FindN(name, func(d store.Document) bool {
		s.evaluated++
		return match(d)
	}, limit)
}

func TestSearch_StopsAtLimit(t *testing.T) {
	s := &countingStore{IStore: fstore.NewFileStore(fstore.Options{Fs: afero.NewMemMapFs()})}
	require.NoError(t, s.WriteCollection(store.CollectionProducts, catalog))
	e := NewEngine(s, nil, 0)

	// "cotton" matches p1 and p4, the first match is enough for limit 1
	products, err := e.Search("cotton", 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, 1, s.evaluated, "products after the limit must not be matched")
}
