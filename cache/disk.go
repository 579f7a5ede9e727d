package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jekyllbuildr/buildr/observe"
	"github.com/jekyllbuildr/buildr/store"
)

const entrySuffix = ".json"

// Lookup results reported to metrics.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupExpired = "expired"
	LookupCorrupt = "corrupt"
)

// entryRecord is the on-disk representation of a cache entry.
type entryRecord struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
	TTL       int64           `json:"ttl"`       // milliseconds
}

// expired reports whether the entry is past its TTL at now.
func (r *entryRecord) expired(now time.Time) bool {
	return now.UnixMilli()-r.Timestamp > r.TTL
}

// DiskCache is a Cache persisted as one JSON file per entry.
type DiskCache struct {
	dir     *store.Dir
	policy  Policy
	logger  observe.Logger
	metrics observe.Metrics
	now     func() time.Time
}

// DiskOption configures a DiskCache.
type DiskOption func(*DiskCache)

// WithLogger sets the logger used to report swallowed failures.
func WithLogger(logger observe.Logger) DiskOption {
	return func(c *DiskCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for lookups and evictions.
func WithMetrics(metrics observe.Metrics) DiskOption {
	return func(c *DiskCache) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) DiskOption {
	return func(c *DiskCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewDiskCache creates a cache rooted at dir. The directory is created on first write.
func NewDiskCache(dir *store.Dir, policy Policy, opts ...DiskOption) *DiskCache {
	c := &DiskCache{
		dir:     dir,
		policy:  policy,
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the cache policy.
func (c *DiskCache) Policy() Policy {
	return c.policy
}

func fileName(key string) string {
	return key + entrySuffix
}

// Get retrieves a value from the cache. Expired and unreadable entries are
// removed and reported as a miss.
func (c *DiskCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if ValidateKey(key) != nil {
		return nil, false
	}
	name := fileName(key)

	raw, err := c.dir.Read(ctx, name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn(ctx, "cache entry unreadable, removing", observe.F("key", key), observe.Err(err))
			c.remove(ctx, name)
		}
		c.metrics.RecordCacheLookup(ctx, LookupMiss)
		return nil, false
	}

	var rec entryRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Data == nil {
		c.logger.Warn(ctx, "cache entry corrupt, removing", observe.F("key", key))
		c.remove(ctx, name)
		c.metrics.RecordCacheLookup(ctx, LookupCorrupt)
		return nil, false
	}

	if rec.expired(c.now()) {
		c.remove(ctx, name)
		c.metrics.RecordCacheLookup(ctx, LookupExpired)
		return nil, false
	}

	c.metrics.RecordCacheLookup(ctx, LookupHit)
	return []byte(rec.Data), true
}

// Set stores a value with the given TTL, then enforces the size budget.
// Storage failures are logged and swallowed.
func (c *DiskCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if !json.Valid(value) {
		return ErrInvalidPayload
	}
	if ttl <= 0 {
		return nil
	}

	rec := entryRecord{
		Data:      json.RawMessage(value),
		Timestamp: c.now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn(ctx, "cache encode failed", observe.F("key", key), observe.Err(err))
		return nil
	}

	if err := c.dir.Write(ctx, fileName(key), raw); err != nil {
		c.logger.Warn(ctx, "cache write failed", observe.F("key", key), observe.Err(err))
		return nil
	}

	c.maybeEvict(ctx)
	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *DiskCache) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	c.remove(ctx, fileName(key))
	return nil
}

// Clear removes all entries unconditionally.
func (c *DiskCache) Clear(ctx context.Context) error {
	removed, err := c.dir.Clear(ctx)
	if err != nil {
		c.logger.Warn(ctx, "cache clear failed", observe.F("removed", removed), observe.Err(err))
		return nil
	}
	c.logger.Debug(ctx, "cache cleared", observe.F("removed", removed))
	return nil
}

func (c *DiskCache) remove(ctx context.Context, name string) {
	if err := c.dir.Remove(ctx, name); err != nil {
		c.logger.Warn(ctx, "cache remove failed", observe.F("entry", name), observe.Err(err))
	}
}

// Ensure DiskCache implements Cache
var _ Cache = (*DiskCache)(nil)
