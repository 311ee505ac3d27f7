// Package model defines the typed documents of the shop. Each type maps to
// the JSON objects stored in one collection; store.Decode and store.Encode
// convert between them and generic store.Document values.
package model
