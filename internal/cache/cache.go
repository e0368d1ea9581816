// Package cache holds the short-lived page cache for the home listing.
//
// A Store is a byte-oriented key/value store with per-entry TTL. Two
// backends exist:
//   - MemoryStore: process-local map, the default for a single instance.
//   - RedisStore: shared across instances, selected with CACHE_BACKEND=redis.
//
// Entries are never invalidated on writes. A stale listing for up to one TTL
// after a new post is accepted behaviour; Clear wipes everything at once.
package cache

import (
	"context"
	"time"
)

// Store is the storage contract the page cache is written against.
type Store interface {
	// Get returns the value for key. A missing or expired key reports
	// ok == false with a nil error.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Clear removes every entry this store owns.
	Clear(ctx context.Context) error
}
