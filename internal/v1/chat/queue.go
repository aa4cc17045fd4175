package chat

import (
	"container/list"
	"sync"
)

// eventQueue is the unbounded FIFO behind each room's inbound side. Producers
// (join, leave, message paths) never block on capacity; the single consumer
// (the room dispatcher) blocks until an event arrives or the queue is closed.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *list.List
	closed bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{items: list.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends an event. Returns false if the queue is already closed.
func (q *eventQueue) Put(event []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items.PushBack(event)
	q.cond.Signal()
	return true
}

// Get blocks until an event is available or the queue is closed. On close any
// remaining events are discarded so the queue always ends empty.
func (q *eventQueue) Get() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		q.items.Init()
		return nil, false
	}
	front := q.items.Front()
	q.items.Remove(front)
	return front.Value.([]byte), true
}

// Close wakes the consumer and makes further Puts no-ops.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
