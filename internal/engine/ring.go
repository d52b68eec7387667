package engine

// Ring is an append-only bounded buffer with FIFO eviction: once the
// capacity is exceeded the oldest entries are dropped. It replaces ad hoc
// slice truncation for both the global interaction log and each character's
// emotion history.
//
// Ring is not safe for concurrent use on its own; the engine serialises
// access under its own mutex.
type Ring[T any] struct {
	entries []T
	cap     int
}

// NewRing creates a ring that retains at most capacity entries. A
// non-positive capacity is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		entries: make([]T, 0, capacity),
		cap:     capacity,
	}
}

// Push appends an entry, evicting the oldest ones when the capacity is
// exceeded.
func (r *Ring[T]) Push(entry T) {
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.cap {
		keep := r.entries[len(r.entries)-r.cap:]
		// Copy to a fresh slice so evicted entries can be garbage collected.
		fresh := make([]T, len(keep), r.cap)
		copy(fresh, keep)
		r.entries = fresh
	}
}

// Len returns the number of retained entries.
func (r *Ring[T]) Len() int {
	return len(r.entries)
}

// Cap returns the configured capacity.
func (r *Ring[T]) Cap() int {
	return r.cap
}

// Items returns a copy of all retained entries in insertion order (oldest
// first).
func (r *Ring[T]) Items() []T {
	out := make([]T, len(r.entries))
	copy(out, r.entries)
	return out
}

// Last returns a copy of up to n most recent entries in insertion order
// (oldest of the selection first).
func (r *Ring[T]) Last(n int) []T {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]T, n)
	copy(out, r.entries[len(r.entries)-n:])
	return out
}
