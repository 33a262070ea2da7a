package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/menta2k/passport-photo/internal/logging"
)

// Cache abstracts the Redis operations used by CachedStore to make testing easier.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache is a concrete implementation backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// OpenRedis connects to addr and checks the connection
func OpenRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// NewRedisCache constructs a new Redis-backed cache adapter.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set writes a value to Redis.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a cached value from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// CachedStore serves Get from a cache in front of another Store. Cache failures are
// logged and never fail the call.
type CachedStore struct {
	inner  Store
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore wraps inner with cache. Entries live for ttl.
func NewCachedStore(inner Store, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedStore {
	return &CachedStore{inner: inner, cache: cache, ttl: ttl, logger: logger.Named("job_cache")}
}

func cacheKey(jobID string) string {
	return "job:" + jobID
}

// Put implements Store
func (s *CachedStore) Put(ctx context.Context, job *Job) error {
	if err := s.inner.Put(ctx, job); err != nil {
		return err
	}
	s.store(ctx, job)
	return nil
}

// Get implements Store
func (s *CachedStore) Get(ctx context.Context, jobID string) (*Job, error) {
	opLogger := logging.WithOperation(s.logger, "cache.get", jobID)

	cached, err := s.cache.Get(ctx, cacheKey(jobID))
	if err == nil {
		var job Job
		decodeErr := json.Unmarshal([]byte(cached), &job)
		if decodeErr == nil {
			return &job, nil
		}
		opLogger.Warn("failed to decode cached job", zap.Error(decodeErr))
	} else if !errors.Is(err, redis.Nil) {
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	job, err := s.inner.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, job)
	return job, nil
}

// List implements Store
func (s *CachedStore) List(ctx context.Context, limit int) ([]*Job, error) {
	return s.inner.List(ctx, limit)
}

// Count implements Store
func (s *CachedStore) Count(ctx context.Context) (int64, error) {
	return s.inner.Count(ctx)
}

func (s *CachedStore) store(ctx context.Context, job *Job) {
	serialized, err := json.Marshal(job)
	if err != nil {
		logging.WithOperation(s.logger, "cache.set", job.JobID).Error("failed to serialize job", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cacheKey(job.JobID), string(serialized), s.ttl); err != nil {
		logging.WithOperation(s.logger, "cache.set", job.JobID).Warn("failed to cache job", zap.Error(err))
	}
}
