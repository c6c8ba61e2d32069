package banlist

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Cached wraps a slower Banlist backend (typically Redis) with a short-lived
// local cache. Singleflight collapses concurrent lookups for the same
// address, so a burst of connection attempts from one host resolves the
// backend lookup only once.
type Cached struct {
	backend Banlist
	cache   *cache.Cache
	group   singleflight.Group
	ttl     time.Duration
}

// NewCached creates a caching wrapper around backend. Lookup results are
// cached for ttl; writes go through to the backend and invalidate the local
// entry.
//
// Parameters:
//   - backend: The authoritative ban list
//   - ttl: How long a lookup result stays valid locally
//
// Returns:
//   - A new Cached ban list
func NewCached(backend Banlist, ttl time.Duration) *Cached {
	return &Cached{
		backend: backend,
		cache:   cache.New(ttl, 2*ttl),
		ttl:     ttl,
	}
}

// IsBanned implements Banlist. It serves from the local cache when possible
// and otherwise asks the backend, with concurrent lookups for the same
// address collapsed into one backend call.
func (c *Cached) IsBanned(ctx context.Context, addr string) (bool, error) {
	if val, found := c.cache.Get(addr); found {
		if banned, ok := val.(bool); ok {
			return banned, nil
		}
	}

	val, err, _ := c.group.Do(addr, func() (interface{}, error) {
		// Double-check after acquiring the singleflight slot; another
		// goroutine may have populated the cache already.
		if cachedVal, found := c.cache.Get(addr); found {
			if banned, ok := cachedVal.(bool); ok {
				return banned, nil
			}
		}

		banned, err := c.backend.IsBanned(ctx, addr)
		if err != nil {
			return false, err
		}

		c.cache.Set(addr, banned, c.ttl)
		return banned, nil
	})
	if err != nil {
		return false, fmt.Errorf("ban lookup for %s: %w", addr, err)
	}

	return val.(bool), nil
}

// Ban implements Banlist.
func (c *Cached) Ban(ctx context.Context, addr string, d time.Duration) error {
	if err := c.backend.Ban(ctx, addr, d); err != nil {
		return err
	}

	c.cache.Set(addr, true, c.ttl)
	return nil
}

// Unban implements Banlist.
func (c *Cached) Unban(ctx context.Context, addr string) error {
	if err := c.backend.Unban(ctx, addr); err != nil {
		return err
	}

	c.cache.Delete(addr)
	return nil
}
