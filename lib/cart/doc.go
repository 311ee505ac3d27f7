// Package cart manages the single shopping cart of every user.
//
// Every mutation reads the cart, changes its item list in memory and writes
// the whole list back through store.IStore.UpdateByID. There is no per cart
// locking: two concurrent mutations of the same cart can both read the old
// item list, and the second write then discards the first change (lost
// update). Callers that need stronger guarantees must serialize mutations
// per user themselves.
package cart
