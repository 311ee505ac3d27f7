// Package testing provides a reusable conformance suite for store.IStore
// implementations. Every implementation should pass RunStoreTests; the suite
// covers collection round trips, document CRUD, error codes, write hooks and
// the isolation of returned documents from the store's internal state.
//
// Usage:
//
//	func TestFileStore(t *testing.T) {
//		storetesting.RunStoreTests(t, "MemMapFs", func(t *testing.T) store.IStore {
//			return fstore.NewFileStore(fstore.Options{Fs: afero.NewMemMapFs()})
//		})
//	}
package testing
