package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listParams struct {
	Page  int    `json:"page"`
	Query string `json:"query"`
}

func newTestCache(t *testing.T) (*ViewCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewViewCache(client, time.Minute), mr
}

func TestViewCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	var out []string
	hit, err := c.Get(ctx, "products", 0, listParams{Page: 1}, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "products", 0, listParams{Page: 1}, []string{"a", "b"}))

	hit, err = c.Get(ctx, "products", 0, listParams{Page: 1}, &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, out)

	hit, err = c.Get(ctx, "products", 0, listParams{Page: 2}, &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestViewCacheTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(ctx, "low-stock", 0, listParams{}, 1))
	mr.FastForward(2 * time.Minute)

	var out int
	hit, err := c.Get(ctx, "low-stock", 0, listParams{}, &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestViewCacheInvalidateOnlyNamedViews(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(ctx, "products", 0, listParams{Page: 1}, 1))
	require.NoError(t, c.Set(ctx, "products", 0, listParams{Page: 2}, 2))
	require.NoError(t, c.Set(ctx, "purchased", 0, listParams{Page: 1}, 3))
	require.NoError(t, mr.Set("unrelated", "x"))

	n, err := c.Invalidate(ctx, "products", "low-stock")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var out int
	hit, err := c.Get(ctx, "purchased", 0, listParams{Page: 1}, &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, mr.Exists("unrelated"))
}

func TestViewCacheDropsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	key, err := c.key("products", 0, listParams{Page: 1})
	require.NoError(t, err)
	require.NoError(t, mr.Set(key, "{broken"))

	var out map[string]any
	hit, err := c.Get(ctx, "products", 0, listParams{Page: 1}, &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists(key))
}

func TestViewCacheLateWriteAfterInvalidateIsNotRead(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	// reader takes the generation before its store query
	gen, err := c.Generation(ctx, "purchased")
	require.NoError(t, err)
	assert.Zero(t, gen)

	// a mutation invalidates while the reader is still querying
	_, err = c.Invalidate(ctx, "purchased")
	require.NoError(t, err)

	// the reader now stores its stale page
	require.NoError(t, c.Set(ctx, "purchased", gen, listParams{Page: 1}, []string{"stale"}))

	next, err := c.Generation(ctx, "purchased")
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	var out []string
	hit, err := c.Get(ctx, "purchased", next, listParams{Page: 1}, &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestViewCacheInvalidateBumpsOnlyNamedViews(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, err := c.Invalidate(ctx, "products", "low-stock")
	require.NoError(t, err)
	_, err = c.Invalidate(ctx, "products")
	require.NoError(t, err)

	for view, want := range map[string]int64{"products": 2, "low-stock": 1, "purchased": 0} {
		gen, err := c.Generation(ctx, view)
		require.NoError(t, err)
		assert.Equal(t, want, gen, view)
	}
}
