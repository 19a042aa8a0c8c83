package tiered

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	val []byte
	ttl time.Duration
}

// memCache records values with the ttl they were stored under.
type memCache struct {
	mu    sync.Mutex
	data  map[string]entry
	gets  atomic.Int32
	delay time.Duration
	err   error
}

func newMemCache() *memCache { return &memCache{data: map[string]entry{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.gets.Add(1)
	time.Sleep(m.delay)
	if m.err != nil {
		return nil, false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	return e.val, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{val: value, ttl: ttl}
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return m.err
}

func (m *memCache) get(key string) (entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	return e, ok
}

var errBroker = errors.New("nats: connection closed")

func TestGet_L1HitSkipsL2(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := New(l1, l2, time.Minute)
	l1.data["velocity:p1"] = entry{val: []byte("a")}

	val, found, err := c.Get(context.Background(), "velocity:p1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a", string(val))
	assert.Zero(t, l2.gets.Load())
}

func TestGet_L2HitBackfillsL1(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := New(l1, l2, 30*time.Second)
	l2.data["velocity:p2"] = entry{val: []byte("b")}

	val, found, err := c.Get(context.Background(), "velocity:p2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", string(val))

	e, ok := l1.get("velocity:p2")
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, e.ttl)
}

func TestGet_ConcurrentMissesShareLookup(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l2.delay = 50 * time.Millisecond
	c := New(l1, l2, time.Minute)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, found, err := c.Get(context.Background(), "velocity:hot")
			assert.NoError(t, err)
			assert.False(t, found)
		}()
	}
	wg.Wait()
	assert.Less(t, l2.gets.Load(), int32(8))
}

func TestSet_CapsL1TTL(t *testing.T) {
	tests := []struct {
		name   string
		ttl    time.Duration
		wantL1 time.Duration
	}{
		{"longer than l1 expiry", time.Hour, time.Minute},
		{"shorter than l1 expiry", 10 * time.Second, 10 * time.Second},
		{"no ttl", 0, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l1, l2 := newMemCache(), newMemCache()
			c := New(l1, l2, time.Minute)
			require.NoError(t, c.Set(context.Background(), "k", []byte("v"), tt.ttl))

			e1, _ := l1.get("k")
			e2, _ := l2.get("k")
			assert.Equal(t, tt.wantL1, e1.ttl)
			assert.Equal(t, tt.ttl, e2.ttl)
		})
	}
}

func TestDelete_BothLevels(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := New(l1, l2, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, c.Delete(ctx, "k"))

	_, in1 := l1.get("k")
	_, in2 := l2.get("k")
	assert.False(t, in1)
	assert.False(t, in2)
}

func TestNilL2(t *testing.T) {
	c := New(newMemCache(), nil, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	val, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(val))
	require.NoError(t, c.Delete(ctx, "k"))
}

func TestL2FailureDegrades(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l2.err = errBroker
	c := New(l1, l2, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour), "set tolerates l2 failure")
	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, c.Delete(ctx, "k"), errBroker, "delete surfaces l2 failure")
	_, inL1 := l1.get("k")
	assert.False(t, inL1)
}
