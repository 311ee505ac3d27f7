package util

import (
	"crypto/rand"
	"encoding/hex"
)

// --------------------------------------------------------------------------
// Random Tokens
// --------------------------------------------------------------------------

// RandomHex returns n random bytes encoded as a hex string (2n characters).
// It is used for session tokens and lock owner ids.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
