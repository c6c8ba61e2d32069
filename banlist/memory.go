package banlist

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory is an in-memory Banlist backed by go-cache. TTL bans expire
// automatically; permanent bans stay until Unban. Lookups never return an
// error.
type Memory struct {
	cache *cache.Cache
}

// NewMemory creates an in-memory ban list. Expired TTL bans are purged every
// cleanupInterval.
//
// Parameters:
//   - cleanupInterval: Interval at which expired bans are removed
//
// Returns:
//   - A new Memory ban list
func NewMemory(cleanupInterval time.Duration) *Memory {
	return &Memory{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

// NewStatic creates an in-memory ban list pre-seeded with permanent bans for
// the given addresses, typically from configuration.
//
// Parameters:
//   - addrs: Addresses to ban permanently
//
// Returns:
//   - A new Memory ban list containing the given addresses
func NewStatic(addrs []string) *Memory {
	m := NewMemory(10 * time.Minute)
	for _, addr := range addrs {
		m.cache.Set(addr, struct{}{}, cache.NoExpiration)
	}

	return m
}

// IsBanned implements Banlist.
func (m *Memory) IsBanned(_ context.Context, addr string) (bool, error) {
	_, banned := m.cache.Get(addr)
	return banned, nil
}

// Ban implements Banlist.
func (m *Memory) Ban(_ context.Context, addr string, d time.Duration) error {
	ttl := cache.NoExpiration
	if d > 0 {
		ttl = d
	}

	m.cache.Set(addr, struct{}{}, ttl)
	return nil
}

// Unban implements Banlist.
func (m *Memory) Unban(_ context.Context, addr string) error {
	m.cache.Delete(addr)
	return nil
}
