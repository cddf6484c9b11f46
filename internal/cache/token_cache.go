package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

// ErrMiss is returned when a token is not cached
var ErrMiss = errors.New("token not cached")

const (
	keyPrefix       = "stockruns:token:"
	userIndexPrefix = "stockruns:user:"
)

func userIndexKey(userID int64) string {
	return fmt.Sprintf("%s%d", userIndexPrefix, userID)
}

// TokenCache keeps the user behind each auth token in Redis so authenticated
// requests skip the database lookup
type TokenCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, opts Options) (*TokenCache, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{opts.Addr},
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client, opts.TTL), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client redis.UniversalClient, ttl time.Duration) *TokenCache {
	return &TokenCache{client: client, ttl: ttl}
}

// Get returns the cached user for a token key
func (c *TokenCache) Get(ctx context.Context, key string) (*models.User, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached token: %w", err)
	}

	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &u, nil
}

// Set caches the user for a token key
func (c *TokenCache) Set(ctx context.Context, key string, u *models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	index := userIndexKey(u.ID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+key, data, c.ttl)
		pipe.SAdd(ctx, index, key)
		if c.ttl > 0 {
			pipe.Expire(ctx, index, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}
	return nil
}

// Delete drops a token key from the cache
func (c *TokenCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to evict token: %w", err)
	}
	return nil
}

// DeleteUser evicts every token cached for a user
func (c *TokenCache) DeleteUser(ctx context.Context, userID int64) error {
	index := userIndexKey(userID)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("failed to read user tokens: %w", err)
	}

	del := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		del = append(del, keyPrefix+k)
	}
	del = append(del, index)
	if err := c.client.Del(ctx, del...).Err(); err != nil {
		return fmt.Errorf("failed to evict user tokens: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *TokenCache) Close() error {
	return c.client.Close()
}
