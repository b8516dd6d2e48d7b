/*
Copyright 2025 WagerOps Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"

	"github.com/wagerops/p2pqueue/config"
	redis_db "github.com/wagerops/p2pqueue/internal/redis-db"
)

// Cache provides the basic operations for the stats cache. It is backed by
// Redis with a local TinyLFU layer in front, so repeated dashboard polls
// within the TTL rarely leave the process.
type Cache interface {
	// Set stores a value in the cache with a specified time-to-live.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get retrieves a value from the cache into data. A cache miss is not an
	// error; data is simply left untouched.
	Get(ctx context.Context, key string, data interface{}) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error
}

// RedisCache implements Cache on top of Redis and a local in-memory layer.
type RedisCache struct {
	cache *cache.Cache
}

// NewCache creates a new RedisCache from the loaded configuration.
//
// Returns:
// - Cache: The cache instance.
// - error: An error if the configuration or Redis initialization fails.
func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	ca, err := newRedisCache(cfg.Redis.Dns, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	return ca, nil
}

// cacheSize defines the size of the local cache in number of entries.
const cacheSize = 128000

func newRedisCache(dns string, skipTLSVerify bool) (*RedisCache, error) {
	client, err := redis_db.NewRedisClient(dns, skipTLSVerify)
	if err != nil {
		return nil, err
	}

	c := cache.New(&cache.Options{
		Redis:      client.Client(),
		LocalCache: cache.NewTinyLFU(cacheSize, 1*time.Minute),
	})

	return &RedisCache{cache: c}, nil
}

// Set adds a new entry to the cache with a specified key and TTL.
func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

// Get retrieves an entry from the cache based on the provided key. A miss
// returns nil and leaves data unmodified.
func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) error {
	err := r.cache.Get(ctx, key, &data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}

	return err
}

// Delete removes an entry from the cache based on the provided key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}
