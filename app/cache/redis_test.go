package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	r, err := NewRedis(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	return r, mr
}

func TestKey(t *testing.T) {
	a := Key("rss:https://example.com/feed.xml")
	assert.Equal(t, a, Key("rss:https://example.com/feed.xml"))
	assert.NotEqual(t, a, Key("rss:https://different.com/feed.xml"))
	assert.Regexp(t, `^entry:[0-9a-f]{16}$`, a)
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	_, ok, err := r.Get(ctx, "rss:https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	fetchedAt := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, r.Set(ctx, NewEntry("rss:https://example.com", testItems(), "rss", fetchedAt, time.Minute)))

	got, ok, err := r.Get(ctx, "rss:https://example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testItems(), got.Items)
	assert.Equal(t, "rss", got.Format)
	assert.True(t, fetchedAt.Equal(got.FetchedAt))

	assert.Equal(t, time.Minute, mr.TTL(Key("rss:https://example.com")))

	mr.FastForward(time.Minute)
	_, ok, err = r.Get(ctx, "rss:https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	require.NoError(t, mr.Set(Key("k"), "{not json"))

	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(Key("k")), "corrupt payload removed")
}

func TestRedisHealth(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	require.NoError(t, r.Set(ctx, NewEntry("k", nil, "", time.Now(), time.Minute)))
	assert.Equal(t, int64(1), r.Health(ctx)["key_count"])

	health := r.Health(ctx)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, BackendRedis, health["type"])

	mr.Close()
	assert.Equal(t, "unhealthy", r.Health(ctx)["status"])
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(addr)
	assert.Error(t, err)
}
