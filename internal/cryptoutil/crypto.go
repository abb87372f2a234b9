package cryptoutil

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// RandomHex returns n random bytes encoded as a 2n-character hex string.
func RandomHex(n int) (string, error) {
	bs := make([]byte, n)
	if _, err := rand.Read(bs); err != nil {
		return "", err
	}
	return hex.EncodeToString(bs), nil
}

// SecureCompare compares two strings in constant time.
// Used for the edge shared secret, never for stream token macs
// (those are compared as raw bytes by the token package).
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
