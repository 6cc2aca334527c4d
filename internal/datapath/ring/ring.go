// Package ring provides the bounded FIFO used by the event and packet
// queues. When full, the oldest entry is overwritten.
package ring

// Ring is a fixed-capacity FIFO. It is not safe for concurrent use.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// New returns a ring holding at most capacity entries. A capacity below
// one is raised to one.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v. It reports whether the oldest entry was dropped to make
// room.
func (r *Ring[T]) Push(v T) bool {
	capacity := len(r.buf)
	if r.size < capacity {
		r.buf[(r.start+r.size)%capacity] = v
		r.size++
		return false
	}

	// Overwrite oldest.
	r.buf[r.start] = v
	r.start = (r.start + 1) % capacity
	return true
}

// Pop removes and returns the oldest entry.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	v := r.buf[r.start]
	r.buf[r.start] = zero
	r.start = (r.start + 1) % len(r.buf)
	r.size--
	return v, true
}

// Peek returns the oldest entry without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.buf[r.start], true
}

// Len returns the number of queued entries.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Reset drops every entry.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.start, r.size = 0, 0
}
