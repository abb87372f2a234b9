package tripper

import (
	"crypto/hmac"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// HashLen is the length of a derived identity hash.
const HashLen = 10

// alphabet matches the classic tripcode output set.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const cacheSize = 4096

// Tripper derives a stable pseudonymous hash from a client address.
type Tripper interface {
	Hash(input string) string
}

type hashTripperImpl struct {
	seed  []byte
	cache *lru.Cache[string, string]
}

// New builds a seeded Tripper. The same seed must be used across restarts
// or every returning client gets a new identity hash and existing ignore
// lists stop matching.
func New(seed string) Tripper {
	// only errors on a non-positive size
	cache, _ := lru.New[string, string](cacheSize)
	return &hashTripperImpl{
		seed:  []byte(seed),
		cache: cache,
	}
}

func (t *hashTripperImpl) Hash(input string) string {
	if input == "" {
		return ""
	}
	if v, ok := t.cache.Get(input); ok {
		return v
	}

	mac := hmac.New(sha256.New, t.seed)
	mac.Write([]byte(input))
	sum := mac.Sum(nil)

	out := make([]byte, HashLen)
	for i := 0; i < HashLen; i++ {
		out[i] = alphabet[int(sum[i])%len(alphabet)]
	}
	v := string(out)
	t.cache.Add(input, v)
	return v
}
