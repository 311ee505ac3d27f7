package testing

import (
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dShop/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory creates a new, empty store for a single test
type StoreFactory func(t *testing.T) store.IStore

// RunStoreTests runs the conformance suite against a store implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("MissingCollectionIsEmpty", func(t *testing.T) {
			testMissingCollectionIsEmpty(t, factory(t))
		})

		t.Run("RoundTrip", func(t *testing.T) {
			testRoundTrip(t, factory(t))
		})

		t.Run("WriteEmptyCollection", func(t *testing.T) {
			testWriteEmptyCollection(t, factory(t))
		})

		t.Run("OverwriteIsVisible", func(t *testing.T) {
			testOverwriteIsVisible(t, factory(t))
		})

		t.Run("Append", func(t *testing.T) {
			testAppend(t, factory(t))
		})

		t.Run("FindByID", func(t *testing.T) {
			testFindByID(t, factory(t))
		})

		t.Run("Find", func(t *testing.T) {
			testFind(t, factory(t))
		})

		t.Run("FindN", func(t *testing.T) {
			testFindN(t, factory(t))
		})

		t.Run("UpdateByID", func(t *testing.T) {
			testUpdateByID(t, factory(t))
		})

		t.Run("DeleteByID", func(t *testing.T) {
			testDeleteByID(t, factory(t))
		})

		t.Run("ReturnedDocumentsAreCopies", func(t *testing.T) {
			testReturnedDocumentsAreCopies(t, factory(t))
		})

		t.Run("InvalidCollectionName", func(t *testing.T) {
			testInvalidCollectionName(t, factory(t))
		})

		t.Run("WriteHooks", func(t *testing.T) {
			testWriteHooks(t, factory(t))
		})

		t.Run("Stat", func(t *testing.T) {
			testStat(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testMissingCollectionIsEmpty(t *testing.T, s store.IStore) {
	docs, err := s.ReadCollection("products")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func testRoundTrip(t *testing.T, s store.IStore) {
	docs := []store.Document{
		{"id": "p-1", "title": "Shirt", "price": 19.99, "inStock": true},
		{"id": "p-2", "title": "Hat", "price": 5.0, "tags": []any{"wool", "winter"}},
		{"id": "p-3", "title": "Scarf", "details": map[string]any{"color": "red"}},
	}

	require.NoError(t, s.WriteCollection("products", docs))

	got, err := s.ReadCollection("products")
	require.NoError(t, err)
	assert.Equal(t, docs, got)

	// second read is served through the cache (if any) and must be equal as well
	got, err = s.ReadCollection("products")
	require.NoError(t, err)
	assert.Equal(t, docs, got)
}

func testWriteEmptyCollection(t *testing.T, s store.IStore) {
	require.NoError(t, s.WriteCollection("orders", nil))

	docs, err := s.ReadCollection("orders")
	require.NoError(t, err)
	assert.Empty(t, docs)

	info, err := s.Stat("orders")
	require.NoError(t, err)
	assert.True(t, info.Exists, "an empty collection is persisted as an empty array")
}

func testOverwriteIsVisible(t *testing.T, s store.IStore) {
	require.NoError(t, s.WriteCollection("products", []store.Document{{"id": "a"}}))
	_, err := s.ReadCollection("products") // warm cache
	require.NoError(t, err)

	x := []store.Document{{"id": "b"}, {"id": "c"}}
	require.NoError(t, s.WriteCollection("products", x))

	got, err := s.ReadCollection("products")
	require.NoError(t, err)
	assert.Equal(t, x, got)
}

func testAppend(t *testing.T, s store.IStore) {
	stored, err := s.AppendDocument("products", store.Document{"title": "Shirt"})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID(), "append must assign an id")
	assert.NotEmpty(t, stored.String(store.FieldCreatedAt), "append must stamp createdAt")

	explicit, err := s.AppendDocument("products", store.Document{"id": "fixed", "title": "Hat"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", explicit.ID())

	_, err = s.AppendDocument("products", store.Document{"id": "fixed"})
	assert.True(t, store.IsCode(err, store.ErrCValidation), "duplicate ids must be rejected")

	docs, err := s.ReadCollection("products")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, stored.ID(), docs[0].ID(), "append keeps insertion order")
	assert.Equal(t, "fixed", docs[1].ID())
}

func testFindByID(t *testing.T, s store.IStore) {
	require.NoError(t, s.WriteCollection("users", []store.Document{
		{"id": "u-1", "username": "alice"},
		{"id": "u-2", "username": "bob"},
	}))

	doc, err := s.FindByID("users", "u-2")
	require.NoError(t, err)
	assert.Equal(t, "bob", doc.String("username"))

	_, err = s.FindByID("users", "u-3")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))

	var serr *store.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 404, serr.StatusCode())
	assert.Equal(t, "users", serr.Collection)
	assert.Equal(t, "u-3", serr.ID)
}

func testFind(t *testing.T, s store.IStore) {
	require.NoError(t, s.WriteCollection("carts", []store.Document{
		{"id": "c-1", "userId": "u-1"},
		{"id": "c-2", "userId": "u-2"},
		{"id": "c-3", "userId": "u-1"},
	}))

	docs, err := s.Find("carts", store.FieldEquals("userId", "u-1"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c-1", docs[0].ID())
	assert.Equal(t, "c-3", docs[1].ID())

	none, err := s.Find("carts", store.FieldEquals("userId", "u-9"))
	require.NoError(t, err)
	assert.Empty(t, none)

	one, err := s.FindOne("carts", store.FieldEquals("userId", "u-2"))
	require.NoError(t, err)
	assert.Equal(t, "c-2", one.ID())

	_, err = s.FindOne("carts", store.FieldEquals("userId", "u-9"))
	assert.True(t, store.IsNotFound(err))
}

func testFindN(t *testing.T, s store.IStore) {
	docs := make([]store.Document, 0, 10)
	for i := 0; i < 10; i++ {
		docs = append(docs, store.Document{"id": string(rune('a' + i)), "even": i%2 == 0})
	}
	require.NoError(t, s.WriteCollection("products", docs))

	calls := 0
	found, err := s.FindN("products", func(d store.Document) bool {
		calls++
		return d["even"] == true
	}, 2)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "a", found[0].ID())
	assert.Equal(t, "c", found[1].ID())
	assert.Equal(t, 3, calls, "the scan must stop once the limit is reached")

	all, err := s.FindN("products", func(d store.Document) bool { return d["even"] == true }, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5, "a non-positive limit returns every match")
}

func testUpdateByID(t *testing.T, s store.IStore) {
	require.NoError(t, s.WriteCollection("orders", []store.Document{
		{"id": "o-1", "status": "pending", "totalAmount": 36.99},
	}))

	updated, err := s.UpdateByID("orders", "o-1", store.Document{"status": "completed", "id": "hijack"})
	require.NoError(t, err)
	assert.Equal(t, "o-1", updated.ID(), "ids are immutable")
	assert.Equal(t, "completed", updated.String("status"))
	assert.Equal(t, 36.99, updated["totalAmount"], "fields not in the patch are kept")
	assert.NotEmpty(t, updated.String(store.FieldUpdatedAt))

	doc, err := s.FindByID("orders", "o-1")
	require.NoError(t, err)
	assert.Equal(t, updated, doc)

	_, err = s.UpdateByID("orders", "o-2", store.Document{"status": "x"})
	assert.True(t, store.IsNotFound(err))
}

func testDeleteByID(t *testing.T, s store.IStore) {
	require.NoError(t, s.WriteCollection("sessions", []store.Document{
		{"id": "s-1"}, {"id": "s-2"}, {"id": "s-3"},
	}))

	require.NoError(t, s.DeleteByID("sessions", "s-2"))

	docs, err := s.ReadCollection("sessions")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "s-1", docs[0].ID())
	assert.Equal(t, "s-3", docs[1].ID())

	assert.True(t, store.IsNotFound(s.DeleteByID("sessions", "s-2")))
}

func testReturnedDocumentsAreCopies(t *testing.T, s store.IStore) {
	require.NoError(t, s.WriteCollection("carts", []store.Document{
		{"id": "c-1", "items": []any{map[string]any{"productId": "p-1", "quantity": 1.0}}},
	}))

	docs, err := s.ReadCollection("carts")
	require.NoError(t, err)
	docs[0]["items"].([]any)[0].(map[string]any)["quantity"] = 99.0
	docs[0]["userId"] = "mutated"

	again, err := s.FindByID("carts", "c-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again["items"].([]any)[0].(map[string]any)["quantity"])
	_, has := again["userId"]
	assert.False(t, has)
}

func testInvalidCollectionName(t *testing.T, s store.IStore) {
	for _, name := range []string{"", "../etc/passwd", "Products", "a/b", "with space"} {
		_, err := s.ReadCollection(name)
		assert.True(t, store.IsCode(err, store.ErrCValidation), "name %q must be rejected", name)
		assert.True(t, store.IsCode(s.WriteCollection(name, nil), store.ErrCValidation), "name %q must be rejected", name)
	}
}

func testWriteHooks(t *testing.T, s store.IStore) {
	var products, activity atomic.Int32
	s.OnWrite(func(collection string) {
		switch collection {
		case "products":
			products.Add(1)
		case "activity":
			activity.Add(1)
		}
	})

	require.NoError(t, s.WriteCollection("products", nil))
	_, err := s.AppendDocument("activity", store.Document{"username": "alice"})
	require.NoError(t, err)
	_, err = s.ReadCollection("products")
	require.NoError(t, err)

	assert.Equal(t, int32(1), products.Load())
	assert.Equal(t, int32(1), activity.Load(), "reads must not fire hooks")
}

func testStat(t *testing.T, s store.IStore) {
	info, err := s.Stat("products")
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Equal(t, 0, info.Count)

	require.NoError(t, s.WriteCollection("products", []store.Document{{"id": "a"}, {"id": "b"}}))
	first, err := s.Stat("products")
	require.NoError(t, err)
	assert.True(t, first.Exists)
	assert.Equal(t, 2, first.Count)
	assert.Positive(t, first.SizeBytes)
	assert.Positive(t, first.WriteIdx)

	require.NoError(t, s.WriteCollection("products", []store.Document{{"id": "a"}}))
	second, err := s.Stat("products")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Count)
	assert.Greater(t, second.WriteIdx, first.WriteIdx, "write index must grow on every write")
}
