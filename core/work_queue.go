package core

import (
	"slices"
	"sync"
)

const defaultQueueCap = 16

// WorkQueue is the hand-off queue between producers and the single worker.
//
// Producers append batches with Enqueue; the timer loop inserts expired
// timers with Promote; the worker detaches everything visible with WaitBatch.
// All mutation happens under mu. WorkQueue never calls into the TimerHeap, so
// the lock order TimerHeap.mu -> WorkQueue.mu holds everywhere.
type WorkQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []WorkItem
	closed   bool

	maxPending int
	overflow   OverflowPolicy
}

// NewWorkQueue creates an empty queue. maxPending <= 0 means unbounded.
func NewWorkQueue(maxPending int, overflow OverflowPolicy) *WorkQueue {
	q := &WorkQueue{
		items:      make([]WorkItem, 0, defaultQueueCap),
		maxPending: max(maxPending, 0),
		overflow:   overflow,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends items to the tail as one batch, so nothing from another
// producer can land between them.
//
// On a bounded queue the batch either waits for room (OverflowBlock) or fails
// with ErrQueueFull (OverflowReject). A batch that can never fit fails with
// ErrQueueFull regardless of policy.
func (q *WorkQueue) Enqueue(items ...WorkItem) error {
	return q.enqueue(items, true)
}

// EnqueueFromWorker is Enqueue for the worker itself. Under OverflowBlock it
// ignores the bound instead of waiting, since only the worker makes room.
// Under OverflowReject it behaves like Enqueue.
func (q *WorkQueue) EnqueueFromWorker(items ...WorkItem) error {
	return q.enqueue(items, q.overflow != OverflowBlock)
}

func (q *WorkQueue) enqueue(items []WorkItem, bounded bool) error {
	if len(items) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	if bounded && q.maxPending > 0 {
		if len(items) > q.maxPending {
			return ErrQueueFull
		}
		for len(q.items)+len(items) > q.maxPending {
			if q.overflow == OverflowReject {
				return ErrQueueFull
			}
			q.notFull.Wait()
			if q.closed {
				return ErrClosed
			}
		}
	}

	q.items = append(q.items, items...)
	q.notEmpty.Signal()
	return nil
}

// Promote inserts a batch of expired timer items.
//
// The batch goes right behind the run of timer items already waiting at the
// head of the queue and in front of the first pending dispatch item. Timers
// therefore keep their firing order, overtake plain work that was already
// waiting, and never overtake an earlier promoted batch. Promotion ignores
// the capacity bound. It returns the number of items accepted, which is zero
// once the queue is closed.
func (q *WorkQueue) Promote(items []WorkItem) int {
	if len(items) == 0 {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}

	pos := 0
	for pos < len(q.items) && q.items[pos].IsTimer() {
		pos++
	}
	q.items = slices.Insert(q.items, pos, items...)
	q.notEmpty.Signal()
	return len(items)
}

// WaitBatch blocks until work is available or the queue is closed, then
// detaches every visible item. After Close it keeps returning batches until
// the queue is empty and then reports false.
func (q *WorkQueue) WaitBatch() ([]WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}

	batch := q.items
	q.items = make([]WorkItem, 0, defaultQueueCap)
	if q.maxPending > 0 {
		q.notFull.Broadcast()
	}
	return batch, true
}

// Close stops accepting new items and wakes every waiter. Items already
// queued stay available to WaitBatch.
func (q *WorkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *WorkQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// TimerLen returns how many promoted timer items are waiting.
func (q *WorkQueue) TimerLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for i := range q.items {
		if q.items[i].IsTimer() {
			n++
		}
	}
	return n
}
