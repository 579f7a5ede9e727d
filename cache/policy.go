package cache

import "time"

const (
	// DefaultMaxBytes is the default aggregate size budget for stored entries.
	DefaultMaxBytes int64 = 50 * 1024 * 1024

	// DefaultLowWaterRatio is the fraction of MaxBytes eviction shrinks to.
	DefaultLowWaterRatio = 0.8
)

// Policy configures caching behavior.
type Policy struct {
	// DefaultTTL is the TTL to use when none is specified.
	// If zero, caching is disabled by default.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// OperationTTLs overrides DefaultTTL per operation identifier.
	OperationTTLs map[string]time.Duration

	// MaxBytes is the aggregate size budget. Zero disables eviction.
	MaxBytes int64

	// LowWaterRatio is the fraction of MaxBytes that eviction shrinks to.
	// Values outside (0, 1] fall back to DefaultLowWaterRatio.
	LowWaterRatio float64

	// AllowUnsafe permits caching operations with unsafe tags (write, mutation, etc.)
	AllowUnsafe bool
}

// DefaultPolicy returns the default caching policy.
// DefaultTTL: 24 hours, MaxTTL: 7 days, MaxBytes: 50 MiB, LowWaterRatio: 0.8
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL:    24 * time.Hour,
		MaxTTL:        7 * 24 * time.Hour,
		MaxBytes:      DefaultMaxBytes,
		LowWaterRatio: DefaultLowWaterRatio,
		AllowUnsafe:   false,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}

// TTLFor returns the effective TTL for an operation class.
func (p Policy) TTLFor(operationID string) time.Duration {
	return p.EffectiveTTL(p.OperationTTLs[operationID])
}

// LowWaterBytes returns the size eviction shrinks the cache to.
func (p Policy) LowWaterBytes() int64 {
	ratio := p.LowWaterRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultLowWaterRatio
	}
	return int64(float64(p.MaxBytes) * ratio)
}
