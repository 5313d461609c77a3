package window

import "time"

// ring is a fixed-capacity FIFO of timestamps, oldest first.
type ring struct {
	buf  []time.Time
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]time.Time, capacity)}
}

func (r *ring) len() int {
	return r.size
}

// push appends t at the back. The caller guarantees len() < cap.
func (r *ring) push(t time.Time) {
	r.buf[(r.head+r.size)%len(r.buf)] = t
	r.size++
}

// popFront removes and returns the oldest entry.
func (r *ring) popFront() time.Time {
	t := r.buf[r.head]
	r.buf[r.head] = time.Time{}
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return t
}

func (r *ring) front() (time.Time, bool) {
	if r.size == 0 {
		return time.Time{}, false
	}
	return r.buf[r.head], true
}

func (r *ring) back() (time.Time, bool) {
	if r.size == 0 {
		return time.Time{}, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)], true
}
