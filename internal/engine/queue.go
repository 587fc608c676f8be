package engine

import (
	"sync"

	"github.com/roach88/querysync/internal/value"
)

// Event reports that a subscription's Watch may have a new result.
//
// Gen identifies the Watch generation that fired. A subscription whose Watch
// was swapped since then has a higher generation and the event is stale.
type Event struct {
	Key value.QueryKey
	Gen uint64
}

// eventQueue is a thread-safe FIFO queue of Watch update events.
//
// The queue is unbounded so transport goroutines never block on delivery.
// Watch callbacks may fire from any goroutine; only the turn holder dequeues.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)
	return true
}

// TryDequeue removes and returns the front event without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	if len(q.events) == 1 {
		// Reuse the backing array once drained
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close drops pending events and rejects future ones.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.events = nil
}

// Closed reports whether Close was called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
