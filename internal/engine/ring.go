package engine

// ring is a fixed-capacity FIFO over the most recent values pushed into it.
// Index 0 is always the oldest retained value. The zero value is not usable;
// construct with newRing.
type ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	n    int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

// push appends v, evicting the oldest element when the ring is full.
// It reports the evicted element and whether an eviction happened.
func (r *ring[T]) push(v T) (evicted T, ok bool) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = v
		r.n++
		return evicted, false
	}
	evicted = r.buf[r.head]
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return evicted, true
}

func (r *ring[T]) len() int { return r.n }

// at returns the i-th retained element, oldest first.
func (r *ring[T]) at(i int) T {
	return r.buf[(r.head+i)%len(r.buf)]
}
