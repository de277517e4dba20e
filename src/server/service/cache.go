package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/apimgr/ecogarden/src/server/metrics"
)

const redisKeyPrefix = "ecogarden:forecast:"

// CachedResponse is an upstream answer kept for reuse
type CachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// ForecastCache keeps upstream weather responses in process memory and,
// when a Redis/Valkey URL is configured, in a shared second layer.
// Redis is optional: if it cannot be reached the cache stays memory-only.
type ForecastCache struct {
	local *cache.Cache
	redis *redis.Client
	ttl   time.Duration
	mu    sync.RWMutex
}

// NewForecastCache creates the cache. An empty redisURL disables the
// shared layer.
func NewForecastCache(ttl time.Duration, redisURL string) *ForecastCache {
	fc := &ForecastCache{
		local: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}

	if redisURL == "" {
		return fc
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("⚠️  Invalid cache URL, using memory cache only: %v", err)
		return fc
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 1 * time.Second
	opts.WriteTimeout = 1 * time.Second
	opts.PoolSize = 10
	opts.MinIdleConns = 2

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️  Cache server unavailable, using memory cache only: %v", err)
		client.Close()
		return fc
	}

	fc.redis = client
	return fc
}

// Backend describes the active layers
func (fc *ForecastCache) Backend() string {
	if fc.redis != nil {
		return "memory+redis"
	}
	return "memory"
}

// SetTTL changes the lifetime of entries stored from now on
func (fc *ForecastCache) SetTTL(ttl time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.ttl = ttl
}

func (fc *ForecastCache) currentTTL() time.Duration {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.ttl
}

// Get returns the cached response for key. A Redis hit is copied into the
// memory layer.
func (fc *ForecastCache) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	if v, found := fc.local.Get(key); found {
		metrics.RecordCacheHit("memory")
		return v.(*CachedResponse), true
	}
	metrics.RecordCacheMiss("memory")

	if fc.redis == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	raw, err := fc.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("⚠️  Cache read failed for %s: %v", key, err)
		}
		metrics.RecordCacheMiss("redis")
		return nil, false
	}

	var resp CachedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		metrics.RecordCacheMiss("redis")
		return nil, false
	}
	metrics.RecordCacheHit("redis")

	if ttl, err := fc.redis.TTL(ctx, redisKeyPrefix+key).Result(); err == nil && ttl > 0 {
		fc.local.Set(key, &resp, ttl)
	}
	return &resp, true
}

// Set stores a response under key in every layer
func (fc *ForecastCache) Set(ctx context.Context, key string, resp *CachedResponse) {
	ttl := fc.currentTTL()
	fc.local.Set(key, resp, ttl)

	if fc.redis == nil {
		return
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	if err := fc.redis.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		log.Printf("⚠️  Cache write failed for %s: %v", key, err)
	}
}

// Purge drops expired entries from the memory layer and reports its size.
// Redis expires keys by itself.
func (fc *ForecastCache) Purge() int {
	fc.local.DeleteExpired()
	n := fc.local.ItemCount()
	metrics.UpdateCacheSize("memory", n)
	return n
}

// Ping checks the shared layer, nil when it is not configured
func (fc *ForecastCache) Ping(ctx context.Context) error {
	if fc.redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	return fc.redis.Ping(ctx).Err()
}

// Close releases the Redis connection pool
func (fc *ForecastCache) Close() error {
	if fc.redis == nil {
		return nil
	}
	return fc.redis.Close()
}
