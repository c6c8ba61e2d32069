// Package presence maintains the screen name index used to locate
// reconnection candidates. It is a lookup aid only and never owns player
// lifecycle.
package presence

import (
	"slices"
	"sync"
)

// Registry is a multimap from screen name to the object names of players
// registered under that name, in registration order. Screen names may be
// duplicated across players; object names are unique. Safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	names map[string][]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string][]string)}
}

// Register records objectName under screenName. Registering the same pair
// twice is a no-op.
//
// Parameters:
//   - screenName: The player's visible name, possibly shared
//   - objectName: The player's unique internal identifier
func (r *Registry) Register(screenName, objectName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.names[screenName], objectName) {
		return
	}

	r.names[screenName] = append(r.names[screenName], objectName)
}

// Unregister removes objectName from the entries for screenName. It is a
// no-op when the pair is not registered.
//
// Parameters:
//   - screenName: The name the player was registered under
//   - objectName: The player's unique internal identifier
func (r *Registry) Unregister(screenName, objectName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.names[screenName]
	idx := slices.Index(entries, objectName)
	if idx < 0 {
		return
	}

	entries = slices.Delete(entries, idx, idx+1)
	if len(entries) == 0 {
		delete(r.names, screenName)
		return
	}

	r.names[screenName] = entries
}

// Candidates returns the object names registered under screenName in
// registration order. The returned slice is a copy.
//
// Parameters:
//   - screenName: The name to look up
//
// Returns:
//   - The object names registered under the name, oldest first
func (r *Registry) Candidates(screenName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.names[screenName])
}

// Len returns the total number of registered entries.
//
// Returns:
//   - The number of (screen name, object name) pairs in the index
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, entries := range r.names {
		n += len(entries)
	}

	return n
}
