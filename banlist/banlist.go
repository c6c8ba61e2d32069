// Package banlist provides address ban lookups for connection admission.
// Backends include an in-memory list with optional TTL bans, a redis-backed
// list shared across server processes, and a caching wrapper that coalesces
// lookup bursts.
package banlist

import (
	"context"
	"time"
)

// NoExpiry bans an address permanently when passed as the duration to Ban.
const NoExpiry time.Duration = 0

// Banlist answers whether a peer address is banned. Implementations must be
// safe for concurrent use; the gateway consults the list on every accepted
// connection.
type Banlist interface {
	// IsBanned reports whether addr is currently banned.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - addr: The peer host address to check
	//
	// Returns:
	//   - true if the address is banned
	//   - An error if the backend lookup fails
	IsBanned(ctx context.Context, addr string) (bool, error)

	// Ban adds addr to the list for the given duration. NoExpiry bans the
	// address until Unban is called.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - addr: The peer host address to ban
	//   - d: Ban duration; NoExpiry for a permanent ban
	//
	// Returns:
	//   - An error if the backend write fails
	Ban(ctx context.Context, addr string, d time.Duration) error

	// Unban removes addr from the list. It is a no-op when the address is
	// not banned.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - addr: The peer host address to unban
	//
	// Returns:
	//   - An error if the backend write fails
	Unban(ctx context.Context, addr string) error
}
