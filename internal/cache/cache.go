package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Forever is the TTL for values that never go stale.
const Forever time.Duration = 0

const DefaultFetchTimeout = 30 * time.Second

// Provenance tells the caller where a value came from.
type Provenance struct {
	Hit bool `json:"hit"`
	// Shared is set when the caller joined a fetch started by another
	// request.
	Shared bool          `json:"shared,omitempty"`
	Age    time.Duration `json:"age"`
}

type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Fetches int64   `json:"fetches"`
	HitRate float64 `json:"hit_rate"`
}

type Options struct {
	// FetchTimeout bounds a fetch once it has been detached from the
	// request that started it.
	FetchTimeout time.Duration
	Now          func() time.Time
}

type Cache struct {
	store        Store
	group        singleflight.Group
	fetchTimeout time.Duration
	now          func() time.Time

	hits    atomic.Int64
	misses  atomic.Int64
	fetches atomic.Int64
}

func New(store Store, opts Options) *Cache {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{store: store, fetchTimeout: opts.FetchTimeout, now: opts.Now}
}

func (c *Cache) Close() error { return c.store.Close() }

func (c *Cache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Entries: c.store.Len(),
		Hits:    hits,
		Misses:  misses,
		Fetches: c.fetches.Load(),
		HitRate: rate,
	}
}

func (c *Cache) lookup(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: store get failed", zap.String("key", key), zap.Error(err))
		return Entry{}, false
	}
	if !ok || e.Expired(c.now()) {
		return Entry{}, false
	}
	return e, true
}

// Fetch returns the cached value for (source, key) or calls fn to produce
// it. Concurrent misses on the same key share one call to fn. That call is
// detached from ctx: if the caller gives up, the fetch still completes and
// fills the cache. ttl == Forever keeps the value permanently.
func Fetch[T any](ctx context.Context, c *Cache, source, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, Provenance, error) {
	var zero T
	k := source + ":" + key

	if e, ok := c.lookup(ctx, k); ok {
		var v T
		if err := json.Unmarshal(e.Value, &v); err == nil {
			c.hits.Add(1)
			return v, Provenance{Hit: true, Age: c.now().Sub(e.StoredAt)}, nil
		}
		zap.L().Warn("cache: dropping undecodable entry", zap.String("key", k))
	}
	c.misses.Add(1)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(k, func() (any, error) {
		// A flight for this key may have finished between our lookup
		// and joining the group.
		if e, ok := c.lookup(detached, k); ok {
			var v T
			if err := json.Unmarshal(e.Value, &v); err == nil {
				return v, nil
			}
		}

		fctx, cancel := context.WithTimeout(detached, c.fetchTimeout)
		defer cancel()

		c.fetches.Add(1)
		v, err := runFetch(fctx, fn)
		if err != nil {
			return nil, err
		}

		b, err := json.Marshal(v)
		if err != nil {
			return nil, eris.Wrapf(err, "cache: encode %s", k)
		}
		now := c.now()
		entry := Entry{Value: b, StoredAt: now}
		if ttl > 0 {
			entry.ExpiresAt = now.Add(ttl)
		}
		if err := c.store.Set(detached, k, entry); err != nil {
			zap.L().Warn("cache: store set failed", zap.String("key", k), zap.Error(err))
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, Provenance{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, Provenance{Shared: r.Shared}, r.Err
		}
		return r.Val.(T), Provenance{Shared: r.Shared}, nil
	}
}

// runFetch turns a panic in fn into an error. singleflight re-panics on a
// bare goroutine for DoChan, which would take the process down.
func runFetch[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("cache: fetch panicked: %v", r)
		}
	}()
	return fn(ctx)
}
