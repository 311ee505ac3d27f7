// Package store defines the document store used by every dShop service: named
// collections of JSON documents, each identified by a unique string id.
//
// The package focuses on:
//   - A unified interface (IStore) for collection and document operations
//   - A single error type (Error) shared by the store and the services built on it
//   - Helpers to move between the generic Document representation and typed structs
//
// Key Components:
//
//   - IStore Interface: read/write of whole collections plus append, find, update
//     and delete by id. Implementations own all I/O and keep derived caches
//     coherent: after a write returns, no read observes the previous content.
//
//   - Error System: Error carries an ErrCode together with the operation,
//     collection and id that failed. Every code maps to an HTTP status code and
//     an error type string (ITEM_NOT_FOUND, FILE_WRITE_ERROR, ACCESS_DENIED, ...)
//     so the route layer can answer without inspecting messages. Use IsCode or
//     IsNotFound to branch on errors.
//
//   - Document: a map[string]any with a few well known fields (id, createdAt,
//     updatedAt). Encode and Decode convert to and from the structs in lib/model.
//
// Implementations:
//
//   - File Store (fstore): one JSON array file per collection, atomic whole-file
//     overwrite, read-through cache in front of the files and write hooks for
//     derived indexes. Available in "github.com/ValentinKolb/dShop/lib/store/fstore".
//
// Concurrency:
//
//	The store does not lock documents. A read-modify-write sequence (read a
//	collection, change it, write it back) is not atomic, so two concurrent
//	writers of the same collection can lose one of the updates. Callers that
//	need more must coordinate themselves (see lib/lockmgr).
package store
