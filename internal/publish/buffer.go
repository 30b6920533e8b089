package publish

import "sync"

// queue is a growable FIFO ring used to decouple tick producers from the
// UDP sender. It grows geometrically up to maxCapacity; once there, Push
// drops and reports false instead of blocking the producer.
type queue[T any] struct {
	mu          sync.Mutex
	cond        *sync.Cond
	buf         []T
	head        int
	tail        int
	count       int
	maxCapacity int
	closed      bool

	pushed  int64
	popped  int64
	dropped int64
}

func newQueue[T any](initial, max int) *queue[T] {
	if initial < 1 {
		initial = 1
	}
	if max < initial {
		max = initial
	}
	q := &queue[T]{
		buf:         make([]T, initial),
		maxCapacity: max,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues item, growing the ring when full. Returns false when the
// item was dropped because the ring is at maxCapacity, or the queue is closed.
func (q *queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.buf) {
		if len(q.buf) >= q.maxCapacity {
			q.dropped++
			return false
		}
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.pushed++
	q.cond.Signal()
	return true
}

// Pop blocks until an item is available or the queue is closed and drained.
func (q *queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}

	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.popped++
	return item, true
}

// Close stops accepting items. Poppers drain the remainder, then get false.
func (q *queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped reports how many items Push discarded since creation.
func (q *queue[T]) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// grow doubles the ring, capped at maxCapacity. Lock must be held.
func (q *queue[T]) grow() {
	next := len(q.buf) * 2
	if next > q.maxCapacity {
		next = q.maxCapacity
	}
	buf := make([]T, next)
	if q.head < q.tail {
		copy(buf, q.buf[q.head:q.tail])
	} else {
		n := copy(buf, q.buf[q.head:])
		copy(buf[n:], q.buf[:q.tail])
	}
	q.buf = buf
	q.head = 0
	q.tail = q.count
}
