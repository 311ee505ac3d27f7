package store

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// WriteHook is called after every successful write to a collection.
// Hooks run synchronously on the writer's goroutine and must not write to the store.
type WriteHook func(collection string)

// CollectionInfo describes the persisted state of a collection.
type CollectionInfo struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`      // number of documents
	SizeBytes int64  `json:"size_bytes"` // size of the backing file (0 if it does not exist)
	Exists    bool   `json:"exists"`     // whether the backing file exists
	WriteIdx  uint64 `json:"write_idx"`  // store wide write index at the last write of this collection
}

// IStore is the interface of the document store. A collection is a named list
// of documents persisted as one JSON array; every document has a unique string id.
// All methods return a *Error on failure.
type IStore interface {
	// ReadCollection returns all documents of a collection in stored order.
	// A collection without a backing file is empty, not an error.
	ReadCollection(name string) (docs []Document, err error)
	// WriteCollection atomically replaces the whole collection.
	// On success all cached data derived from the collection is invalidated.
	WriteCollection(name string, docs []Document) (err error)
	// AppendDocument adds a document to a collection. A missing id or createdAt is assigned.
	// The stored document is returned.
	AppendDocument(name string, doc Document) (stored Document, err error)
	// FindByID returns the document with the given id or an ErrCNotFound error.
	FindByID(name, id string) (doc Document, err error)
	// Find returns all documents for which match returns true, in stored order.
	// match must not modify the document it is given.
	Find(name string, match func(Document) bool) (docs []Document, err error)
	// FindN is Find that stops after limit matches. limit <= 0 means no limit.
	FindN(name string, match func(Document) bool, limit int) (docs []Document, err error)
	// FindOne returns the first document for which match returns true or an ErrCNotFound error.
	FindOne(name string, match func(Document) bool) (doc Document, err error)
	// UpdateByID merges patch into the document, stamps updatedAt and writes the collection back.
	// The id of a document can not be changed. The updated document is returned.
	UpdateByID(name, id string, patch Document) (updated Document, err error)
	// DeleteByID removes the document with the given id or returns an ErrCNotFound error.
	DeleteByID(name, id string) (err error)
	// Stat returns information about a collection.
	Stat(name string) (info CollectionInfo, err error)
	// OnWrite registers a hook that is called after every successful write.
	OnWrite(hook WriteHook)
}

// --------------------------------------------------------------------------
// Collections
// --------------------------------------------------------------------------

// Names of the collections used by the shop.
const (
	CollectionProducts  = "products"
	CollectionUsers     = "users"
	CollectionCarts     = "carts"
	CollectionOrders    = "orders"
	CollectionSessions  = "sessions"
	CollectionActivity  = "activity"
	CollectionReviews   = "reviews"
	CollectionWishlists = "wishlists"
	CollectionLoyalty   = "loyalty"
	CollectionSupport   = "support"
)

// Collections lists every known collection name.
var Collections = []string{
	CollectionProducts, CollectionUsers, CollectionCarts, CollectionOrders,
	CollectionSessions, CollectionActivity, CollectionReviews,
	CollectionWishlists, CollectionLoyalty, CollectionSupport,
}
