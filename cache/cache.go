package cache

import (
	"context"
	"errors"
	"time"
)

// KeyLength is the length of a cache key: a hex-encoded SHA-256 digest.
const KeyLength = 64

// Sentinel errors for cache operations.
var (
	ErrNilCache       = errors.New("cache: cache is nil")
	ErrInvalidKey     = errors.New("cache: key is invalid")
	ErrInvalidPayload = errors.New("cache: payload is not valid JSON")
)

// Cache is the interface for memoizing expensive remote operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use on different keys.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get never errors; it returns (nil, false) on miss, expiry or corruption.
// - Errors: Set only errors on invalid input; storage failures degrade to no caching.
type Cache interface {
	// Get retrieves a cached value. Returns (nil, false) on miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value with the given TTL. TTL<=0 means no caching.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Clear removes all cached values.
	Clear(ctx context.Context) error
}

// ValidateKey checks that key is a well-formed cache key. Keys become file
// names, so anything other than lower-case hex of KeyLength is rejected.
func ValidateKey(key string) error {
	if len(key) != KeyLength {
		return ErrInvalidKey
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ErrInvalidKey
		}
	}
	return nil
}
