package abi

import (
	"fmt"
	"sync"
	"unsafe"
)

// Allocator provides memory the caller can own, such as C malloc/free.
type Allocator interface {
	// Alloc returns n float32 values of writable memory, or nil.
	Alloc(n int) unsafe.Pointer
	Free(p unsafe.Pointer)
}

// Buffers tracks the audio buffers handed to the caller.
type Buffers struct {
	alloc Allocator

	mu   sync.Mutex
	live map[unsafe.Pointer]int
}

// NewBuffers creates a registry on alloc.
func NewBuffers(alloc Allocator) *Buffers {
	return &Buffers{alloc: alloc, live: make(map[unsafe.Pointer]int)}
}

// Export copies samples into caller-owned memory. Empty audio yields a nil
// pointer and no allocation.
func (b *Buffers) Export(samples []float32) (unsafe.Pointer, int, error) {
	if len(samples) == 0 {
		return nil, 0, nil
	}
	p := b.alloc.Alloc(len(samples))
	if p == nil {
		return nil, 0, fmt.Errorf("abi: cannot allocate %d samples", len(samples))
	}
	copy(unsafe.Slice((*float32)(p), len(samples)), samples)

	b.mu.Lock()
	b.live[p] = len(samples)
	b.mu.Unlock()
	return p, len(samples), nil
}

// Free releases a buffer from Export. A nil pointer or zero length is a
// no-op. Unknown pointers, double frees and length mismatches are
// rejected without touching memory.
func (b *Buffers) Free(p unsafe.Pointer, n int) error {
	if p == nil || n == 0 {
		return nil
	}
	b.mu.Lock()
	size, ok := b.live[p]
	if ok && size == n {
		delete(b.live, p)
	}
	b.mu.Unlock()

	switch {
	case !ok:
		return fmt.Errorf("%w: %p", ErrUnknownBuffer, p)
	case size != n:
		return fmt.Errorf("%w: %p has %d samples, not %d", ErrUnknownBuffer, p, size, n)
	}
	b.alloc.Free(p)
	return nil
}

// Live returns the number of buffers not yet freed.
func (b *Buffers) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}
