// Package ristretto is the in-process L1 cache, bounded by value size.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// counterRatio is ristretto's recommended counters per expected entry;
// entries are assumed to average 512 bytes of JSON.
const (
	counterRatio  = 10
	avgEntryBytes = 512
)

// Cache holds copies of values so callers may reuse their buffers.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New returns a cache holding at most maxSizeMB megabytes of keys and values.
func New(maxSizeMB int64) (*Cache, error) {
	maxCost := max(maxSizeMB, 1) << 20
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCost/avgEntryBytes*counterRatio, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return append([]byte(nil), val...), true, nil
}

// Set blocks until the entry is admitted or rejected, so a successful Set is
// visible to the next Get.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := append([]byte(nil), value...)
	c.c.SetWithTTL(key, v, int64(len(v)+len(key)), max(ttl, 0))
	c.c.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Stats reports lookups served and missed since start.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.c.Metrics.Hits(), c.c.Metrics.Misses()
}

func (c *Cache) Close() {
	c.c.Close()
}
