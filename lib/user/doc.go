// Package user manages the accounts in the users collection. Passwords are
// stored as bcrypt hashes (golang.org/x/crypto/bcrypt) and never returned by
// the lookup functions.
package user
