package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/redis/go-redis/v9"
)

const cachePrefix = "msal:cache:"

// RedisCache persists the serialized token cache in Redis so a restarted
// client resumes the same session
type RedisCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisCache creates a Redis-backed token cache. namespace separates
// applications sharing one Redis; ttl bounds the session lifetime.
func NewRedisCache(client *redis.Client, namespace string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

// Replace loads the stored cache for the partition into u
func (s *RedisCache) Replace(ctx context.Context, u cache.Unmarshaler, hints cache.ReplaceHints) error {
	data, err := s.client.Get(ctx, s.key(hints.PartitionKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("getting token cache: %w", err)
	}

	if err := u.Unmarshal(data); err != nil {
		return fmt.Errorf("unmarshaling token cache: %w", err)
	}
	return nil
}

// Export stores the serialized cache for the partition with the session TTL
func (s *RedisCache) Export(ctx context.Context, c cache.Marshaler, hints cache.ExportHints) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling token cache: %w", err)
	}

	if err := s.client.Set(ctx, s.key(hints.PartitionKey), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving token cache: %w", err)
	}
	return nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisCache) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (s *RedisCache) key(partition string) string {
	if partition == "" {
		return cachePrefix + s.namespace
	}
	return cachePrefix + s.namespace + ":" + partition
}
