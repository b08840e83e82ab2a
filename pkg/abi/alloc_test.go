package abi

import (
	"sync"
	"unsafe"
)

// goAlloc hands out Go memory and counts frees.
type goAlloc struct {
	mu    sync.Mutex
	bufs  map[unsafe.Pointer][]float32
	frees int
	fail  bool
}

func newGoAlloc() *goAlloc {
	return &goAlloc{bufs: make(map[unsafe.Pointer][]float32)}
}

func (a *goAlloc) Alloc(n int) unsafe.Pointer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return nil
	}
	buf := make([]float32, n)
	p := unsafe.Pointer(&buf[0])
	a.bufs[p] = buf
	return p
}

func (a *goAlloc) Free(p unsafe.Pointer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.bufs, p)
	a.frees++
}
