package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		Close()
		mr.Close()
	})
	return mr
}

type payload struct {
	Title string `json:"title"`
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()
	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			dest.Title = "from db"
			return nil
		}
	}

	var first payload
	require.NoError(t, Aside(ctx, FeedPageKey(10), &first, FeedPageTTL, fetch(&first)))
	var second payload
	require.NoError(t, Aside(ctx, FeedPageKey(10), &second, FeedPageTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "from db", second.Title)
	assert.True(t, mr.Exists("feed:first:10"))
	assert.Equal(t, FeedPageTTL, mr.TTL("feed:first:10"))
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupRedis(t)
	var p payload
	err := Aside(context.Background(), PostKey(1), &p, PostTTL, func() error { return errors.New("db down") })
	assert.Error(t, err)
	assert.False(t, mr.Exists(PostKey(1)))
}

func TestAside_WithoutRedisAlwaysFetches(t *testing.T) {
	SetClient(nil)
	calls := 0
	var p payload
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), "k", &p, PostTTL, func() error { calls++; return nil }))
	}
	assert.Equal(t, 2, calls)
	InvalidateFeed(context.Background())
}

func TestInvalidatePost_DropsFeedPages(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, FeedPageKey(10), payload{Title: "a"}, FeedPageTTL))
	require.NoError(t, SetJSON(ctx, FeedPageKey(20), payload{Title: "b"}, FeedPageTTL))
	require.NoError(t, SetJSON(ctx, PostKey(3), payload{Title: "c"}, PostTTL))
	require.NoError(t, SetJSON(ctx, "unrelated", payload{}, PostTTL))

	InvalidatePost(ctx, 3)

	assert.False(t, mr.Exists(FeedPageKey(10)))
	assert.False(t, mr.Exists(FeedPageKey(20)))
	assert.False(t, mr.Exists(PostKey(3)))
	assert.True(t, mr.Exists("unrelated"))
}
