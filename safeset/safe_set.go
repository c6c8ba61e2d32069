// Package safeset provides a thread-safe set, used by the server for the
// registry of currently-connected peer addresses.
package safeset

import "sync"

// SafeSet is a thread-safe set that stores a collection of unique elements of
// comparable type T. It is safe for concurrent use by multiple goroutines.
type SafeSet[T comparable] struct {
	m map[T]struct{}
	sync.RWMutex
}

// NewSafeSet creates and returns a new empty SafeSet.
func NewSafeSet[T comparable]() *SafeSet[T] {
	return &SafeSet[T]{m: make(map[T]struct{})}
}

// Add adds an element to the set.
//
// Parameters:
//   - value: The element to add
func (s *SafeSet[T]) Add(value T) {
	s.Lock()
	defer s.Unlock()
	s.m[value] = struct{}{}
}

// Remove removes an element from the set.
//
// Parameters:
//   - value: The element to remove
func (s *SafeSet[T]) Remove(value T) {
	s.Lock()
	defer s.Unlock()
	delete(s.m, value)
}

// Contains reports whether the set contains the given element.
//
// Parameters:
//   - value: The element to look up
//
// Returns:
//   - true if the set contains value, false otherwise
func (s *SafeSet[T]) Contains(value T) bool {
	s.RLock()
	defer s.RUnlock()
	_, ok := s.m[value]
	return ok
}

// Size returns the number of elements in the set.
//
// Returns:
//   - The number of elements in the set
func (s *SafeSet[T]) Size() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.m)
}

// Range calls the function f for each element in the set. Iteration stops if f
// returns false. The behavior is undefined if f modifies the set.
//
// Parameters:
//   - f: Function called for each element; return false to stop iteration
func (s *SafeSet[T]) Range(f func(value T) bool) {
	s.RLock()
	defer s.RUnlock()
	for k := range s.m {
		if !f(k) {
			break
		}
	}
}
