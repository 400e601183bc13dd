package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tomodachi/internal/domain/user"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - profile:{user_id} - 5m TTL, profile projection cache

// CacheConfig contains configuration for caching
type CacheConfig struct {
	ProfileTTL time.Duration // TTL for profile cache (default 5m)
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ProfileTTL: 5 * time.Minute,
	}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

// NewCacheStore creates a new cache store
func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{
		client: client,
		config: config,
	}
}

// GetProfile reads a cached profile projection. Returns (nil, nil) on miss.
func (c *CacheStore) GetProfile(ctx context.Context, userID uuid.UUID) (*user.Profile, error) {
	key := profileCacheKey(userID)
	data, err := c.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p user.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetProfile caches a profile projection
func (c *CacheStore) SetProfile(ctx context.Context, p user.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileCacheKey(p.ID), data, c.config.ProfileTTL).Err()
}

// InvalidateProfile drops the cached profile after a write
func (c *CacheStore) InvalidateProfile(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, profileCacheKey(userID)).Err()
}

func profileCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("profile:%s", userID)
}
