// Package util provides small shared building blocks for the dShop packages.
//
// The package contains:
//   - functions: random token generation
//   - mapheap: a generic priority queue that also supports key-based access,
//     used by the cache garbage collector to track expiry deadlines
//
// None of the types in this package are thread-safe unless stated otherwise.
package util
