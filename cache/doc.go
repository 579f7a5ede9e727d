// Package cache provides a persistent, size-bounded cache for expensive
// remote operations.
//
// Entries are addressed by a SHA-256 key over the operation identifier and
// its canonicalized parameters, expire lazily after a per-entry TTL, and are
// evicted oldest-written first once the aggregate size exceeds the policy
// budget. Every storage failure degrades to a cache miss.
package cache
