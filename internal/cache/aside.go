package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	FeedPagePrefix = "feed:first:"
	PostKeyPrefix  = "post:%d"
)

const (
	FeedPageTTL = 30 * time.Second
	PostTTL     = 5 * time.Minute
)

// FeedPageKey caches the first page of the feed for one page size.
func FeedPageKey(limit int) string {
	return fmt.Sprintf("%s%d", FeedPagePrefix, limit)
}

func PostKey(postID int64) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// GetJSON reads key into dest. It reports false on a miss or without a cache.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	b, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for ttl.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside serves dest from Redis, or calls fetch to fill it and stores the
// result. Cache errors degrade to a direct fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}
	if err := fetch(); err != nil {
		return err
	}
	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate deletes keys.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateFeed drops every cached first page.
func InvalidateFeed(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, FeedPagePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	Invalidate(ctx, keys...)
}

// InvalidatePost drops one post and every page that may contain it.
func InvalidatePost(ctx context.Context, postID int64) {
	Invalidate(ctx, PostKey(postID))
	InvalidateFeed(ctx)
}
