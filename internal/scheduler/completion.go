package scheduler

import (
	"context"
	"sync"
)

// sentinel ends the scheduler loop. Vertex indices are non-negative, so -1
// can never collide with a real completion.
const sentinel = -1

// completionQueue is an unbounded FIFO of completed vertex indices.
//
// It is unbounded so that the pre-pass can publish every builtin and
// allow-listed package before the scheduler loop starts, and so that
// workers never block while holding a result the scheduler has yet to see.
// A one-slot signal channel coalesces wakeups; Dequeue is context-aware so
// shutdown never strands the scheduler loop on an empty queue.
type completionQueue struct {
	mu     sync.Mutex
	items  []int
	signal chan struct{}
}

func newCompletionQueue() *completionQueue {
	return &completionQueue{signal: make(chan struct{}, 1)}
}

// Enqueue appends v. Safe from any goroutine.
func (q *completionQueue) Enqueue(v int) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the front element, blocking until one is
// available or ctx is cancelled. ok is false only on cancellation.
func (q *completionQueue) Dequeue(ctx context.Context) (v int, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v = q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return 0, false
		}
	}
}

// Len returns the number of queued completions.
func (q *completionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
