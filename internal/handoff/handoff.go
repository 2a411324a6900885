// Package handoff publishes snapshots from one goroutine to many readers.
package handoff

import "sync/atomic"

// Value holds the latest published copy of a T. Store and Load may be
// called concurrently; each Load observes one complete Store.
type Value[T any] struct {
	p atomic.Pointer[T]
}

// Store publishes a copy of v.
func (h *Value[T]) Store(v T) {
	h.p.Store(&v)
}

// Load returns the latest published value and whether one exists.
func (h *Value[T]) Load() (T, bool) {
	p := h.p.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Clear drops the published value.
func (h *Value[T]) Clear() {
	h.p.Store(nil)
}
