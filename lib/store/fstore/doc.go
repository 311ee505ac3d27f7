// Package fstore implements the store.IStore interface on top of a filesystem:
// every collection is one JSON array file, <name>.json, in the root of an afero.Fs.
//
// Key Features:
//   - Missing files are empty collections, never errors
//   - Unparseable files fail with store.ErrCCorruptData and are never repaired
//   - Whole-file atomic overwrite (temp file + rename) on every write
//   - Read-through cache (lib/cache) in front of the files, invalidated on write
//   - Write hooks for derived indexes such as the activity index
//   - Monotonic write index stamped per collection
//
// Implementation Details:
//
//   - Filesystem: production uses afero.NewBasePathFs over the OS filesystem
//     (see NewDirStore), tests use afero.NewMemMapFs. Collection names are
//     restricted to [a-z][a-z0-9_-]* so they can not leave the data directory.
//
//   - Caching: whole collections are cached under "collection|<name>" and
//     tagged with the collection name. WriteCollection invalidates the tag,
//     which also drops derived entries (search results, activity pages) that
//     other packages stored under the same tag. Callers always receive deep
//     copies, so cached documents can not be modified from outside.
//
//   - Locking: one RWMutex per collection makes "write file + invalidate
//     cache" atomic with respect to "read file + fill cache". It does not make
//     AppendDocument, UpdateByID or DeleteByID atomic: they read the
//     collection, change it and write it back in separate steps, and two
//     concurrent calls may lose one of the updates (last writer wins).
//
// Usage Example:
//
//	c := cache.NewCache(cache.DefaultOptions())
//	s, err := fstore.NewDirStore("data", c)
//
//	product, err := s.AppendDocument("products", store.Document{"title": "Shirt", "price": 19.99})
//	found, err := s.FindByID("products", product.ID())
package fstore
