package room

import (
	"sync"
	"sync/atomic"
)

// Factory builds a new room for the directory, typically closing over the
// active server configuration.
type Factory func(id uint32) *Room

// Directory owns the set of active rooms and designates one of them as the
// current target for incoming signups. The current room is replaced exactly
// when it is absent, full, or finished.
//
// SelectOrCreate alone does not make a signup atomic: callers racing to
// place a player must hold their own critical section across the
// select-and-add sequence so two simultaneous signups cannot both create a
// room when one would have had capacity.
type Directory struct {
	factory Factory
	nextID  atomic.Uint32

	mu      sync.RWMutex
	rooms   []*Room
	current *Room
}

// NewDirectory creates an empty directory that builds rooms with factory.
//
// Parameters:
//   - factory: Called with a fresh room id whenever a new room is needed
//
// Returns:
//   - The new Directory
func NewDirectory(factory Factory) *Directory {
	return &Directory{factory: factory}
}

// SelectOrCreate returns the current room, creating and installing a new one
// when the current room is absent, full, or finished.
//
// Returns:
//   - The room that should receive the next signup
func (d *Directory) SelectOrCreate() *Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil || d.current.IsFull() || d.current.IsFinished() {
		d.current = d.factory(d.nextID.Add(1))
		d.rooms = append(d.rooms, d.current)
	}

	return d.current
}

// Current returns the current room without creating one, or nil.
func (d *Directory) Current() *Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Rooms returns a snapshot of all rooms in creation order, including
// finished ones.
func (d *Directory) Rooms() []*Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Room, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// List returns snapshots of the unfinished rooms for lobby display.
//
// Returns:
//   - RoomInfo values in room creation order
func (d *Directory) List() []RoomInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]RoomInfo, 0, len(d.rooms))
	for _, r := range d.rooms {
		if r.IsFinished() {
			continue
		}

		out = append(out, r.Info())
	}

	return out
}

// Len returns the number of rooms in the directory.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Remove drops the room with the given id from the directory. Driven by an
// external finalize signal; the directory never removes rooms on its own. If
// the removed room was current, the next signup creates a fresh room.
//
// Parameters:
//   - id: The room id to remove
//
// Returns:
//   - The removed room, or nil if no room had that id
func (d *Directory) Remove(id uint32) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, r := range d.rooms {
		if r.ID() != id {
			continue
		}

		d.rooms = append(d.rooms[:i], d.rooms[i+1:]...)
		if d.current == r {
			d.current = nil
		}

		return r
	}

	return nil
}
