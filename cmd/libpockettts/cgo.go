package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct pocket_tts_model_t pocket_tts_model_t;
typedef struct pocket_tts_voice_state_t pocket_tts_voice_state_t;
typedef struct pocket_tts_stream_t pocket_tts_stream_t;

static pocket_tts_model_t *model_ptr(uintptr_t h) { return (pocket_tts_model_t *)h; }
static pocket_tts_voice_state_t *voice_ptr(uintptr_t h) { return (pocket_tts_voice_state_t *)h; }
static pocket_tts_stream_t *stream_ptr(uintptr_t h) { return (pocket_tts_stream_t *)h; }

static float *alloc_samples(size_t n) { return (float *)malloc(n * sizeof(float)); }
static void free_samples(float *p) { free(p); }
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/haivivi/pockettts/pkg/abi"
)

// Handles travel as opaque pointers holding the id. They are never
// dereferenced on either side.

func modelPtr(h abi.Handle) *C.pocket_tts_model_t { return C.model_ptr(C.uintptr_t(h)) }
func voicePtr(h abi.Handle) *C.pocket_tts_voice_state_t {
	return C.voice_ptr(C.uintptr_t(h))
}
func streamPtr(h abi.Handle) *C.pocket_tts_stream_t { return C.stream_ptr(C.uintptr_t(h)) }

func handle[T any](p *T) abi.Handle { return abi.Handle(uintptr(unsafe.Pointer(p))) }

// cAlloc hands out malloc memory so callers may keep audio past any Go
// collection.
type cAlloc struct{}

func (cAlloc) Alloc(n int) unsafe.Pointer { return unsafe.Pointer(C.alloc_samples(C.size_t(n))) }
func (cAlloc) Free(p unsafe.Pointer)      { C.free_samples((*C.float)(p)) }

// messageCache keeps the C copy of the last error message alive until the
// message changes.
type messageCache struct {
	mu  sync.Mutex
	msg string
	ptr *C.char
}

func (c *messageCache) get(msg string) *C.char {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ptr != nil && c.msg == msg {
		return c.ptr
	}
	if c.ptr != nil {
		C.free(unsafe.Pointer(c.ptr))
	}
	c.msg, c.ptr = msg, C.CString(msg)
	return c.ptr
}
