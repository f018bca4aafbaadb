// Package eventq is a bounded single-producer/single-consumer queue that
// carries decoded MIDI events from the input goroutine to the render loop.
//
// Push and TryPop never block, never take a lock and never allocate. Head and
// tail are free-running counters; the slot index is the counter modulo the
// capacity, and the queue is full when tail-head equals the capacity.
package eventq

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cbegin/polymidi-go/internal/midi"
)

var ErrInvalidCapacity = errors.New("queue capacity must be positive")

const cacheLine = 64

type Queue struct {
	// head is written only by the consumer.
	head atomic.Uint64
	_    [cacheLine - 8]byte
	// tail is written only by the producer.
	tail    atomic.Uint64
	_       [cacheLine - 8]byte
	dropped atomic.Uint64
	_       [cacheLine - 8]byte

	size uint64
	buf  []midi.Event
}

// New allocates a queue holding exactly capacity events.
func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Queue{
		size: uint64(capacity),
		buf:  make([]midi.Event, capacity),
	}, nil
}

// Push enqueues ev. When the queue is full the event is dropped, counted and
// false is returned; pending events are never overwritten. Producer only.
func (q *Queue) Push(ev midi.Event) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() >= q.size {
		q.dropped.Add(1)
		return false
	}
	q.buf[tail%q.size] = ev
	// Publishing tail makes the slot write visible to the consumer.
	q.tail.Store(tail + 1)
	return true
}

// TryPop dequeues the oldest event. Consumer only.
func (q *Queue) TryPop() (midi.Event, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return midi.Event{}, false
	}
	ev := q.buf[head%q.size]
	q.head.Store(head + 1)
	return ev, true
}

// Len is a snapshot; it may be stale by the time the caller looks at it.
func (q *Queue) Len() int {
	head := q.head.Load()
	return int(q.tail.Load() - head)
}

func (q *Queue) Cap() int {
	return int(q.size)
}

// Dropped returns how many pushes were rejected because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
