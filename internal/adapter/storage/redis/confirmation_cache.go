package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ConfirmationCache implements ports.ConfirmationCache using Redis. It holds
// the serialized result of an already confirmed deposit keyed by provider
// correlation id, so duplicate webhook bursts can be answered without
// touching the store. The transaction row remains the source of truth; a
// cache miss simply falls through to the database.
type ConfirmationCache struct {
	client *goredis.Client
	prefix string
}

// NewConfirmationCache creates a new Redis-backed confirmation cache.
func NewConfirmationCache(client *goredis.Client) *ConfirmationCache {
	return &ConfirmationCache{
		client: client,
		prefix: "deposit:confirmed:",
	}
}

// Get retrieves a cached confirmation by correlation id.
// Returns nil, nil if the key does not exist.
func (c *ConfirmationCache) Get(ctx context.Context, externalRef string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+externalRef).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis confirmation get: %w", err)
	}
	return val, nil
}

// Set stores a confirmation result with TTL.
func (c *ConfirmationCache) Set(ctx context.Context, externalRef string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+externalRef, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis confirmation set: %w", err)
	}
	return nil
}
