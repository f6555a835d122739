// Package store provides a generic, thread-safe, in-memory store that keeps
// items in insertion order, plus a simulated clock for time-dependent tests.
package store

import (
	"sync"
	"time"
)

// Entry pairs an item with its ID in snapshots.
type Entry[T any] struct {
	ID   string `json:"id"`
	Item T      `json:"item"`
}

// Store is a thread-safe, insertion-ordered store for objects of type T.
// A positive capacity bounds the store; the oldest items are evicted first.
type Store[T any] struct {
	mu       sync.RWMutex
	items    map[string]T
	order    []string
	capacity int
}

// New creates a Store. A non-positive capacity means unbounded.
func New[T any](capacity int) *Store[T] {
	return &Store[T]{
		items:    make(map[string]T),
		order:    make([]string, 0),
		capacity: capacity,
	}
}

// Put stores an item under id. Overwriting keeps the original position.
func (s *Store[T]) Put(id string, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(id, item)
}

func (s *Store[T]) putLocked(id string, item T) {
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
	for s.capacity > 0 && len(s.order) > s.capacity {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
	}
}

// Get retrieves an item by ID.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Len returns the number of items.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// All returns every item, oldest first.
func (s *Store[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Latest returns up to limit items, newest first. A non-positive limit
// returns everything.
func (s *Store[T]) Latest(limit int) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.order)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]T, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.items[s.order[i]])
	}
	return out
}

// Reset drops every item.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	s.order = make([]string, 0)
}

// Snapshot returns all entries in insertion order.
func (s *Store[T]) Snapshot() []Entry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry[T], 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Entry[T]{ID: id, Item: s.items[id]})
	}
	return out
}

// Load replaces the contents with entries, preserving their order. Later
// duplicates overwrite earlier ones in place.
func (s *Store[T]) Load(entries []Entry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T, len(entries))
	s.order = make([]string, 0, len(entries))
	for _, e := range entries {
		s.putLocked(e.ID, e.Item)
	}
}

// Clock provides a simulated clock. The zero value tracks wall time.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
	frozen time.Time
}

// NewClock creates a new simulated clock with no offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.frozen.IsZero() {
		return c.frozen.Add(c.offset)
	}
	return time.Now().Add(c.offset)
}

// Freeze pins the clock to t until Reset.
func (c *Clock) Freeze(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = t
	c.offset = 0
}

// Advance moves the simulated clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Reset returns the clock to wall time.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
	c.frozen = time.Time{}
}

// Offset returns the current clock offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
