// Package cache is a thin optional layer over redis for read-heavy
// responses. A nil *Cache is valid and means caching is disabled; all
// methods no-op on it, so callers never branch on configuration.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultTTL = 5 * time.Minute

// Cache wraps the redis client.
type Cache struct {
	client *redis.Client
	log    zerolog.Logger
}

// Connect dials redis. On failure it returns nil and the caller runs
// without a cache; an unreachable redis is never fatal.
func Connect(ctx context.Context, redisURL string, log zerolog.Logger) *Cache {
	if redisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unreachable, continuing without cache")
		client.Close()
		return nil
	}

	log.Info().Msg("Redis cache connected")
	return &Cache{client: client, log: log}
}

func accountKey(accountID string) string {
	return fmt.Sprintf("coinkeep:account:%s", accountID)
}

// GetAccount returns the cached payload for an account, if any.
func (c *Cache) GetAccount(ctx context.Context, accountID string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, accountKey(accountID)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetAccount stores the payload for an account.
func (c *Cache) SetAccount(ctx context.Context, accountID string, payload []byte) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, accountKey(accountID), payload, defaultTTL).Err(); err != nil {
		c.log.Warn().Err(err).Str("account_id", accountID).Msg("Cache set failed")
	}
}

// InvalidateAccount drops the cached payload after a mutation.
func (c *Cache) InvalidateAccount(ctx context.Context, accountID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, accountKey(accountID)).Err(); err != nil {
		c.log.Warn().Err(err).Str("account_id", accountID).Msg("Cache invalidation failed")
	}
}

// Close releases the redis client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
