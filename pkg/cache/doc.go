// Package cache provides the shared permission-cache tiers: a Redis-backed
// durable tier and an optional bounded in-process LRU layered in front of
// it. Both speak the same byte-level Store contract consumed by the
// authorization service.
//
// The cache is an optimization, never a system of record: every entry is
// TTL-bounded, every failure is safe to treat as a miss, and invalidation
// is a plain delete of whole keys (entries are never partially updated).
package cache
