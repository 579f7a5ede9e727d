package cache

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"
)

// ExecutorFunc performs the underlying operation on a cache miss.
type ExecutorFunc func(ctx context.Context, operationID string, params any) ([]byte, error)

// SkipRule determines whether to skip caching for a given operation.
// Returns true if caching should be skipped.
type SkipRule func(operationID string, tags []string) bool

// UnsafeTags are tags that indicate an operation has side effects and should not be cached.
var UnsafeTags = []string{"write", "danger", "unsafe", "mutation", "delete"}

// DefaultSkipRule skips caching for operations with unsafe tags.
// Tag matching is case-insensitive.
func DefaultSkipRule(_ string, tags []string) bool {
	for _, tag := range tags {
		tagLower := strings.ToLower(tag)
		for _, unsafe := range UnsafeTags {
			if tagLower == unsafe {
				return true
			}
		}
	}
	return false
}

// CacheMiddleware wraps expensive operations with caching.
type CacheMiddleware struct {
	cache    Cache
	keyer    Keyer
	policy   Policy
	skipRule SkipRule
	flight   singleflight.Group
}

// NewCacheMiddleware creates a new cache middleware.
// If skipRule is nil, DefaultSkipRule is used.
func NewCacheMiddleware(cache Cache, keyer Keyer, policy Policy, skipRule SkipRule) *CacheMiddleware {
	if skipRule == nil {
		skipRule = DefaultSkipRule
	}
	return &CacheMiddleware{
		cache:    cache,
		keyer:    keyer,
		policy:   policy,
		skipRule: skipRule,
	}
}

// Execute runs the operation with caching.
// On cache hit, returns cached result without calling executor.
// On cache miss, calls executor and caches the result under the TTL of
// the operation's class. Concurrent misses for the same key share one
// executor call. Errors are NOT cached.
func (m *CacheMiddleware) Execute(
	ctx context.Context,
	operationID string,
	params any,
	tags []string,
	executor ExecutorFunc,
) ([]byte, error) {
	if m == nil || m.cache == nil {
		return executor(ctx, operationID, params)
	}

	if !m.policy.AllowUnsafe && m.skipRule(operationID, tags) {
		return executor(ctx, operationID, params)
	}

	if !m.policy.ShouldCache() {
		return executor(ctx, operationID, params)
	}

	key, err := m.keyer.Key(operationID, params)
	if err != nil {
		// Key generation failed - execute without caching
		return executor(ctx, operationID, params)
	}

	if cached, ok := m.cache.Get(ctx, key); ok {
		return cached, nil
	}

	v, err, _ := m.flight.Do(key, func() (any, error) {
		result, err := executor(ctx, operationID, params)
		if err != nil {
			return result, err
		}
		if ttl := m.policy.TTLFor(operationID); ttl > 0 {
			_ = m.cache.Set(ctx, key, result, ttl)
		}
		return result, nil
	})
	result, _ := v.([]byte)
	return result, err
}

// Invalidate removes the cached result for an operation, if any.
func (m *CacheMiddleware) Invalidate(ctx context.Context, operationID string, params any) error {
	if m == nil || m.cache == nil {
		return ErrNilCache
	}
	key, err := m.keyer.Key(operationID, params)
	if err != nil {
		return err
	}
	return m.cache.Delete(ctx, key)
}
