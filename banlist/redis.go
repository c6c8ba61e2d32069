package banlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces ban entries in redis.
const keyPrefix = "gameserver:ban:"

// Redis is a Banlist stored in redis so that a ban applies to every server
// process sharing the instance. Each banned address is a key with an
// optional TTL.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a redis-backed ban list.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	bans := banlist.NewRedis(client)
//
// Parameters:
//   - client: The redis client to use
//
// Returns:
//   - A new Redis ban list
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// IsBanned implements Banlist.
func (r *Redis) IsBanned(ctx context.Context, addr string) (bool, error) {
	err := r.client.Get(ctx, keyPrefix+addr).Err()
	if err == nil {
		return true, nil
	}

	if errors.Is(err, redis.Nil) {
		return false, nil
	}

	return false, fmt.Errorf("redis ban lookup: %w", err)
}

// Ban implements Banlist.
func (r *Redis) Ban(ctx context.Context, addr string, d time.Duration) error {
	// go-redis treats expiration 0 as no expiry, matching NoExpiry.
	if err := r.client.Set(ctx, keyPrefix+addr, 1, d).Err(); err != nil {
		return fmt.Errorf("redis ban: %w", err)
	}

	return nil
}

// Unban implements Banlist.
func (r *Redis) Unban(ctx context.Context, addr string) error {
	if err := r.client.Del(ctx, keyPrefix+addr).Err(); err != nil {
		return fmt.Errorf("redis unban: %w", err)
	}

	return nil
}
