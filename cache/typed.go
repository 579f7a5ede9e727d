package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Typed is a Cache view that stores values of type T as JSON.
type Typed[T any] struct {
	cache Cache
}

// NewTyped wraps c for values of type T.
func NewTyped[T any](c Cache) *Typed[T] {
	return &Typed[T]{cache: c}
}

// Get returns the cached value. Values that no longer decode into T are
// deleted and reported as a miss.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, ok := t.cache.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		_ = t.cache.Delete(ctx, key)
		return zero, false
	}
	return v, true
}

// Set stores v under key with the given TTL.
func (t *Typed[T]) Set(ctx context.Context, key string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %T: %w", v, err)
	}
	return t.cache.Set(ctx, key, raw, ttl)
}

// Do runs fn through the middleware, caching its JSON-encoded result.
func Do[T any](
	ctx context.Context,
	m *CacheMiddleware,
	operationID string,
	params any,
	tags []string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var out T
	raw, err := m.Execute(ctx, operationID, params, tags, func(ctx context.Context, _ string, _ any) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("cache: decode %T: %w", out, err)
	}
	return out, nil
}
