// Package activity keeps the per user activity log of the shop.
//
// Index maps a username to the ids of that user's activity records, newest
// first. It is derived data: it is rebuilt in one pass over the activity
// collection whenever the collection signature (record count and file size)
// differs from the one of the last build, or when the store reported a write
// to the collection since then. Log records activities and serves paginated
// per user views through the index, hydrating only the ids of the requested
// page.
package activity
