package loadercache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1-race-predictor/pkg/utils/cache"
)

type counter struct {
	calls map[string]int
	fail  map[string]bool
}

func (c *counter) load(_ context.Context, key string) (*string, error) {
	c.calls[key]++
	if c.fail[key] {
		return nil, errors.New("boom")
	}
	ret := key + "-value"
	return &ret, nil
}

func newCounter() *counter {
	return &counter{calls: map[string]int{}, fail: map[string]bool{}}
}

func TestLoaderCache_Get(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cnt := newCounter()
	c := New(
		WithLoader[string, string](cnt.load),
		WithExpiration[string, string](time.Minute),
		WithClock[string, string](func() time.Time { return now }),
	)

	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a-value", *v)
	_, _ = c.Get(ctx, "a")
	assert.Equal(t, 1, cnt.calls["a"], "second get is served from cache")

	now = now.Add(2 * time.Minute)
	_, _ = c.Get(ctx, "a")
	assert.Equal(t, 2, cnt.calls["a"], "expired entry is reloaded")

	c.Invalidate(ctx, "a")
	_, _ = c.Get(ctx, "a")
	assert.Equal(t, 3, cnt.calls["a"])

	_, _ = c.Get(ctx, "b")
	c.InvalidateAll(ctx)
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "b")
	assert.Equal(t, 4, cnt.calls["a"])
	assert.Equal(t, 2, cnt.calls["b"])
}

func TestLoaderCache_errorsNotCached(t *testing.T) {
	ctx := context.Background()
	cnt := newCounter()
	cnt.fail["x"] = true
	c := New(WithLoader[string, string](cnt.load))

	_, err := c.Get(ctx, "x")
	assert.Error(t, err)
	_, err = c.Get(ctx, "x")
	assert.Error(t, err)
	assert.Equal(t, 2, cnt.calls["x"])
}

func TestLoaderCache_noLoader(t *testing.T) {
	c := New[string, string]()
	_, err := c.Get(context.Background(), "a")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
