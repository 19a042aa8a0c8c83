package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/adapter/ristretto"
	"github.com/scrumix/scrumix/internal/port/cache"
)

type forecast struct {
	Average float64 `json:"average"`
	Sprints []int   `json:"sprints"`
}

func newCache(t *testing.T) *ristretto.Cache {
	t.Helper()
	c, err := ristretto.New(1)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	key := cache.Key("velocity", "p1")

	var got forecast
	found, err := cache.GetJSON(ctx, c, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.SetJSON(ctx, c, key, forecast{Average: 7.5, Sprints: []int{5, 10}}, time.Minute))
	found, err = cache.GetJSON(ctx, c, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, forecast{Average: 7.5, Sprints: []int{5, 10}}, got)
}

func TestGetJSON_CorruptEntryEvicted(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	require.NoError(t, c.Set(ctx, "bad", []byte("{not json"), time.Minute))

	var got forecast
	found, err := cache.GetJSON(ctx, c, "bad", &got)
	require.NoError(t, err)
	assert.False(t, found)

	_, still, _ := c.Get(ctx, "bad")
	assert.False(t, still)
}

type brokenCache struct{ cache.Cache }

var errDown = errors.New("backend down")

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errDown }

func TestGetJSON_BackendError(t *testing.T) {
	var got forecast
	found, err := cache.GetJSON(context.Background(), brokenCache{}, "k", &got)
	assert.ErrorIs(t, err, errDown)
	assert.False(t, found)
}

func TestSetJSON_EncodeError(t *testing.T) {
	err := cache.SetJSON(context.Background(), newCache(t), "k", make(chan int), time.Minute)
	assert.ErrorContains(t, err, "encode cache entry k")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "idem:u1:POST:/api/v1/projects:k", cache.Key("idem", "u1", "POST", "/api/v1/projects", "k"))
	assert.Equal(t, "velocity", cache.Key("velocity"))
}
