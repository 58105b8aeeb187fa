package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originmark/provenance/internal/cache"
	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/models"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.New(client, logger.NewNop(), nil), mr
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	entry := models.ContentEntry{
		ContentHash: "0xabc",
		Creator:     "0x1111111111111111111111111111111111111111",
		ManifestURI: "ipfs://QmManifest",
		Timestamp:   1700000000,
	}
	require.NoError(t, c.Set(ctx, cache.ContentKey("0xabc"), entry, time.Minute))

	var got models.ContentEntry
	assert.True(t, c.Get(ctx, cache.ContentKey("0xabc"), &got))
	assert.Equal(t, entry, got)
}

func TestGetMissingKeyIsMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var got models.ContentEntry
	assert.False(t, c.Get(context.Background(), cache.ContentKey("0xmissing"), &got))

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestGetOrSetFetchesOnce(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) (any, error) {
		calls.Add(1)
		return models.ContentEntry{ContentHash: "0xdef", Creator: "0x2222222222222222222222222222222222222222"}, nil
	}

	var first, second models.ContentEntry
	require.NoError(t, c.GetOrSet(ctx, cache.ContentKey("0xdef"), time.Minute, &first, fetch))
	require.NoError(t, c.GetOrSet(ctx, cache.ContentKey("0xdef"), time.Minute, &second, fetch))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first, second)
}

func TestGetOrSetPropagatesFetchError(t *testing.T) {
	c, _ := newTestCache(t)

	var got models.ContentEntry
	err := c.GetOrSet(context.Background(), cache.ContentKey("0xerr"), time.Minute, &got,
		func(context.Context) (any, error) { return nil, models.ErrNotFound })
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteInvalidates(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key := cache.BindingKey("youtube", "vid123")
	require.NoError(t, c.Set(ctx, key, models.ContentEntry{ContentHash: "0xabc"}, time.Minute))
	require.NoError(t, c.Delete(ctx, key))

	var got models.ContentEntry
	assert.False(t, c.Get(ctx, key, &got))
}

func TestExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cache.ManifestKey("0xabc"), models.Manifest{Version: "1.0"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var got models.Manifest
	assert.False(t, c.Get(ctx, cache.ManifestKey("0xabc"), &got))
}

func TestStatsHitRate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	var s string
	c.Get(ctx, "k", &s)
	c.Get(ctx, "k", &s)
	c.Get(ctx, "absent", &s)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.InDelta(t, 0.666, stats.HitRate, 0.01)
}

func TestNilClientDegradesGracefully(t *testing.T) {
	c := cache.New(nil, logger.NewNop(), nil)
	ctx := context.Background()

	var got models.ContentEntry
	assert.False(t, c.Get(ctx, "k", &got))
	assert.NoError(t, c.Set(ctx, "k", got, time.Minute))
	assert.NoError(t, c.Delete(ctx, "k"))

	// GetOrSet falls through to the fetcher every time.
	var calls int
	fetch := func(context.Context) (any, error) {
		calls++
		return models.ContentEntry{ContentHash: "0xabc"}, nil
	}
	require.NoError(t, c.GetOrSet(ctx, "k", time.Minute, &got, fetch))
	require.NoError(t, c.GetOrSet(ctx, "k", time.Minute, &got, fetch))
	assert.Equal(t, 2, calls)
	assert.Equal(t, "0xabc", got.ContentHash)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "content:0xabc", cache.ContentKey("0xabc"))
	assert.Equal(t, "manifest:ipfs://QmX", cache.ManifestKey("ipfs://QmX"))
	assert.Equal(t, "binding:youtube:vid123", cache.BindingKey("youtube", "vid123"))
	assert.Equal(t, "verifications:0xabc", cache.VerificationsKey("0xabc"))
}
