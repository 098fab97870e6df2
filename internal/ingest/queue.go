package ingest

import "sync"

// Queue is a thread-safe FIFO of records that drops repeated idempotent records
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Record
	seen    map[string]bool
	stopped bool
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	q := &Queue{
		items: make([]Record, 0),
		seen:  make(map[string]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends rec unless the queue is stopped or an identical idempotent
// record was already pushed. Returns true if added.
func (q *Queue) Push(rec Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	if key := rec.dedupKey(); key != "" {
		if q.seen[key] {
			return false
		}
		q.seen[key] = true
	}

	q.items = append(q.items, rec)
	q.cond.Signal()
	return true
}

// Pop removes the first record, blocking while the queue is empty and running.
// Returns false once the queue is stopped and drained.
func (q *Queue) Pop() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if len(q.items) > 0 {
			rec := q.items[0]
			q.items = q.items[1:]
			return rec, true
		}
		if q.stopped {
			return Record{}, false
		}
		q.cond.Wait()
	}
}

// Size returns the number of pending records
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop rejects further pushes; waiting consumers drain what is left
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.cond.Broadcast()
}
