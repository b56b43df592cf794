package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "views"

// ViewCache keeps rendered list views in Redis, keyed by view name, view generation
// and md5 of the params. The generation counter lives at views:gen:<view>.
type ViewCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewViewCache(client *redis.Client, ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ViewCache{Client: client, TTL: ttl}
}

func genKey(view string) string {
	return fmt.Sprintf("%s:gen:%s", keyPrefix, view)
}

func (c *ViewCache) key(view string, gen int64, params any) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d:%x", keyPrefix, view, gen, md5.Sum(data)), nil
}

// Generation returns the current generation of a view; a view never invalidated is 0.
func (c *ViewCache) Generation(ctx context.Context, view string) (int64, error) {
	gen, err := c.Client.Get(ctx, genKey(view)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *ViewCache) Get(ctx context.Context, view string, gen int64, params any, dst any) (bool, error) {
	key, err := c.key(view, gen, params)
	if err != nil {
		return false, err
	}
	raw, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// entri rusak dibuang saja
		c.Client.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

func (c *ViewCache) Set(ctx context.Context, view string, gen int64, params any, value any) error {
	key, err := c.key(view, gen, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, data, c.TTL).Err()
}

// Invalidate bumps the generation of each view, then drops the renderings already stored.
// It returns how many entries were deleted.
func (c *ViewCache) Invalidate(ctx context.Context, views ...string) (int, error) {
	for _, view := range views {
		if err := c.Client.Incr(ctx, genKey(view)).Err(); err != nil {
			return 0, err
		}
	}

	deleted := 0
	for _, view := range views {
		pattern := fmt.Sprintf("%s:%s:*", keyPrefix, view)
		iter := c.Client.Scan(ctx, 0, pattern, 100).Iterator()

		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return deleted, err
		}
		if len(keys) == 0 {
			continue
		}
		n, err := c.Client.Del(ctx, keys...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}
