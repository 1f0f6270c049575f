package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bloomsocial/observability/metrics"
)

const profileKeyPrefix = "bloom:user:"

// ProfileCache is a read-through cache for user profiles backed by redis.
// The projector invalidates entries whenever a user row changes.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ProfileCache{client: client, ttl: ttl}
}

// NewRedisClient connects to the configured redis instance and checks it is
// reachable.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("indexer: redis ping %s: %w", cfg.Address, err)
	}
	return client, nil
}

func profileKey(address string) string { return profileKeyPrefix + address }

// Get returns the cached profile. The boolean is false on a miss.
func (c *ProfileCache) Get(ctx context.Context, address string) (*User, bool, error) {
	data, err := c.client.Get(ctx, profileKey(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.Indexer().RecordCacheLookup(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		// Treat undecodable entries as a miss; the next Put overwrites them.
		metrics.Indexer().RecordCacheLookup(false)
		return nil, false, nil
	}
	metrics.Indexer().RecordCacheLookup(true)
	return &user, true, nil
}

func (c *ProfileCache) Put(ctx context.Context, user *User) error {
	if user == nil {
		return nil
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(user.Address), payload, c.ttl).Err()
}

// Invalidate removes the cached profiles of the given addresses.
func (c *ProfileCache) Invalidate(ctx context.Context, addresses ...string) error {
	if len(addresses) == 0 {
		return nil
	}
	keys := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		keys = append(keys, profileKey(addr))
	}
	return c.client.Del(ctx, keys...).Err()
}
