// Package tiered layers the in-process cache over the shared one.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/scrumix/scrumix/internal/port/cache"
)

// Cache reads L1 first and falls back to L2, copying L2 hits into L1.
// Entries stay in L1 for at most l1Expire so replicas pick up invalidations
// made elsewhere. An unreachable L2 degrades to L1-only; only Delete reports
// L2 errors, because a surviving shared entry would be served stale.
type Cache struct {
	l1, l2   cache.Cache
	l1Expire time.Duration
	lookups  singleflight.Group
}

// New layers l1 over l2. l2 may be nil.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

type l2Result struct {
	val   []byte
	found bool
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil || found || c.l2 == nil {
		return val, found, err
	}

	// Concurrent misses for one key share a single L2 round trip.
	v, _, _ := c.lookups.Do(key, func() (any, error) {
		val, found, err := c.l2.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "l2 cache get failed", "key", key, "error", err)
			return l2Result{}, nil
		}
		if found {
			_ = c.l1.Set(ctx, key, val, c.l1Expire)
		}
		return l2Result{val: val, found: found}, nil
	})
	r := v.(l2Result)
	return r.val, r.found, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.l1TTL(ttl)); err != nil {
		return err
	}
	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, value, ttl); err != nil {
			slog.WarnContext(ctx, "l2 cache set failed", "key", key, "error", err)
		}
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	if c.l2 == nil {
		return nil
	}
	return c.l2.Delete(ctx, key)
}

// l1TTL is ttl capped at l1Expire; ttl <= 0 means no caller limit.
func (c *Cache) l1TTL(ttl time.Duration) time.Duration {
	if c.l1Expire > 0 && (ttl <= 0 || ttl > c.l1Expire) {
		return c.l1Expire
	}
	return ttl
}
