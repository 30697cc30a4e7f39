// Package cache is the shared enrichment cache: a TTL-aware keyed store
// plus single-flight de-duplication of concurrent fetches.
package cache

import (
	"context"
	"time"
)

// Entry is one cached value. A zero ExpiresAt never expires.
type Entry struct {
	Value     []byte    `json:"value"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store is the storage tier behind a Cache. Implementations must be safe
// for concurrent use; expiry is decided by the Cache, not the Store.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Len() int
	Close() error
}
