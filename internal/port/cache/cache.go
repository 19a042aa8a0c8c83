// Package cache is the port for the byte-oriented caches behind velocity
// metrics and idempotent replays.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache stores opaque values under string keys. A miss is (nil, false, nil);
// errors are reserved for backend failures. ttl <= 0 means the backend's
// default lifetime.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key joins parts into a namespaced cache key, e.g. Key("velocity", id).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
