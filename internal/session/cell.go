package session

import "sync"

// Cell is a latest-value broadcast holder: a value plus a subscriber list.
// New subscribers receive the current value synchronously; every Set delivers
// the new value to all subscribers.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]func(T)
	next  int
}

// NewCell builds a cell seeded with the given value.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores the value and notifies all subscribers.
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	c.value = value
	handlers := make([]func(T), 0, len(c.subs))
	for _, fn := range c.subs {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(value)
	}
}

// Subscribe registers fn, delivers the current value to it immediately, and
// returns a cancel func that removes the subscription.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = fn
	current := c.value
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}
