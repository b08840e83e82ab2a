package abi

import (
	"errors"
	"sync"
)

// Status codes returned across the boundary.
const (
	StatusOK    = 0
	StatusError = -1
	StatusChunk = 1
	StatusEnd   = 0
)

var (
	// ErrInvalidHandle is recorded when a handle is unknown or already
	// freed.
	ErrInvalidHandle = errors.New("abi: invalid handle")

	// ErrNullPointer is recorded when a required pointer argument is NULL.
	ErrNullPointer = errors.New("abi: null pointer")

	// ErrUnknownBuffer is recorded when audio_free receives a pointer that
	// was not handed out, or was already freed.
	ErrUnknownBuffer = errors.New("abi: unknown audio buffer")

	// ErrEmptyBuffer is recorded when an input byte buffer is empty.
	ErrEmptyBuffer = errors.New("abi: empty buffer")

	// ErrPanic wraps a panic recovered inside a boundary call.
	ErrPanic = errors.New("abi: internal panic")
)

// ErrorSlot is the single last-error record shared by all callers.
// Messages are advisory when several threads use the library at once.
type ErrorSlot struct {
	mu  sync.Mutex
	msg string
	set bool
}

// Set records err. A nil err clears the slot.
func (s *ErrorSlot) Set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.msg, s.set = "", false
		return
	}
	s.msg, s.set = err.Error(), true
}

// Message returns the recorded message, if any.
func (s *ErrorSlot) Message() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msg, s.set
}

// Clear empties the slot.
func (s *ErrorSlot) Clear() {
	s.Set(nil)
}
