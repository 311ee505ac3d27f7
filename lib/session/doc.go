// Package session implements token based login sessions.
//
// A user has at most one session: Create removes every earlier session of
// the user in the same collection write that adds the new one. A session is
// dead once its expiry has passed, whether or not it was swept already.
// Tokens are 32 random bytes, hex encoded.
package session
