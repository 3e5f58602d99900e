package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"continuity.org/internal/identity"
)

const keyPrefix = "continuity:identity:"

// commands is the subset of the redis client the cache uses.
type commands interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Cache implements identity.Cache on redis. Only resolution snapshots are
// stored; session tokens never leave the process.
type Cache struct {
	rdb commands
}

var _ identity.Cache = (*Cache)(nil)

// Open connects to addr and verifies it answers.
func Open(ctx context.Context, addr, password string, db int) (*Cache, *goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{rdb: rdb}, rdb, nil
}

// NewCache wraps an existing client.
func NewCache(rdb goredis.Cmdable) *Cache { return &Cache{rdb: rdb} }

// Get implements identity.Cache.
func (c *Cache) Get(ctx context.Context, key string) (identity.Resolution, bool, error) {
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return identity.Resolution{}, false, nil
	}
	if err != nil {
		return identity.Resolution{}, false, err
	}
	r, err := identity.UnmarshalResolution(data)
	if err != nil {
		// A snapshot we cannot read is treated as a miss and dropped.
		_ = c.rdb.Del(ctx, keyPrefix+key).Err()
		return identity.Resolution{}, false, nil
	}
	return r, true, nil
}

// Set implements identity.Cache.
func (c *Cache) Set(ctx context.Context, key string, r identity.Resolution, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := identity.MarshalResolution(r)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyPrefix+key, data, ttl).Err()
}

// Delete implements identity.Cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, keyPrefix+key).Err()
}
