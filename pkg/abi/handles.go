package abi

import (
	"fmt"
	"sync"
)

// Handle is an opaque id handed across the boundary. Zero is never a
// valid handle, so it stands in for NULL.
type Handle uint64

// Table maps handles to values. Ids are never reused, so a stale handle
// fails with ErrInvalidHandle instead of reaching a newer object.
type Table[T any] struct {
	kind string

	mu    sync.Mutex
	next  Handle
	items map[Handle]T
}

// NewTable creates a table. kind names the objects in error messages.
func NewTable[T any](kind string) *Table[T] {
	return &Table[T]{kind: kind, items: make(map[Handle]T)}
}

// Put stores v and returns its new handle.
func (t *Table[T]) Put(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.items[t.next] = v
	return t.next
}

// Get returns the value of h.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	if !ok {
		var zero T
		return zero, t.invalid(h)
	}
	return v, nil
}

// Take removes h and returns its value.
func (t *Table[T]) Take(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	if !ok {
		var zero T
		return zero, t.invalid(h)
	}
	delete(t.items, h)
	return v, nil
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *Table[T]) invalid(h Handle) error {
	if h == 0 {
		return fmt.Errorf("%w: %s is null", ErrInvalidHandle, t.kind)
	}
	return fmt.Errorf("%w: %s %d", ErrInvalidHandle, t.kind, h)
}
