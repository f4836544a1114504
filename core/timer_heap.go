package core

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// timerEntry is a scheduled WorkItem inside the heap
type timerEntry struct {
	item  WorkItem
	seq   uint64 // equal expiries fire in scheduling order
	index int    // for heap interface
}

// timerEntryHeap implements heap.Interface
type timerEntryHeap []*timerEntry

func (h timerEntryHeap) Len() int { return len(h) }
func (h timerEntryHeap) Less(i, j int) bool {
	if h[i].item.Expiry.Equal(h[j].item.Expiry) {
		return h[i].seq < h[j].seq
	}
	return h[i].item.Expiry.Before(h[j].item.Expiry)
}
func (h timerEntryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerEntryHeap) Push(x any) {
	n := len(*h)
	entry := x.(*timerEntry)
	entry.index = n
	*h = append(*h, entry)
}

func (h *timerEntryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil // avoid memory leak
	entry.index = -1
	*h = old[0 : n-1]
	return entry
}

func (h timerEntryHeap) peek() *timerEntry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// TimerHeap holds delayed items ordered by expiry and owns the timer loop
// that promotes expired items into a WorkQueue.
//
// Promotion runs while mu is held and takes the WorkQueue lock inside it.
// That fixes the lock order to TimerHeap before WorkQueue.
type TimerHeap struct {
	pq     timerEntryHeap
	mu     sync.Mutex
	seq    uint64
	closed bool

	target *WorkQueue
	wakeup chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTimerHeap creates a heap promoting into target. The loop is started
// separately with Run.
func NewTimerHeap(target *WorkQueue) *TimerHeap {
	ctx, cancel := context.WithCancel(context.Background())
	th := &TimerHeap{
		pq:     make(timerEntryHeap, 0),
		target: target,
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	heap.Init(&th.pq)
	return th
}

// Schedule stamps item as a timer item expiring after delay and pushes it.
// Zero and negative delays expire on the next pass of the loop.
func (th *TimerHeap) Schedule(delay time.Duration, item WorkItem) error {
	th.mu.Lock()
	defer th.mu.Unlock()

	if th.closed {
		return ErrClosed
	}

	item.Origin = OriginTimer
	item.Expiry = time.Now().Add(delay)
	entry := &timerEntry{item: item, seq: th.seq}
	th.seq++
	heap.Push(&th.pq, entry)

	// Only a new earliest timer changes what the loop is waiting for
	if entry.index == 0 {
		select {
		case th.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Run is the timer loop. It closes ready once it is running and returns
// after Stop.
func (th *TimerHeap) Run(ready chan<- struct{}) {
	defer close(th.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	close(ready)

	for {
		var fire <-chan time.Time
		if wait, ok := th.nextWait(); ok {
			timer.Reset(wait)
			fire = timer.C
		}

		select {
		case <-th.ctx.Done():
			timer.Stop()
			return
		case <-fire:
			th.promoteExpired()
		case <-th.wakeup:
			// New earliest timer, recalculate
			timer.Stop()
		}
	}
}

// nextWait returns how long until the earliest expiry; ok is false when
// the heap is empty.
func (th *TimerHeap) nextWait() (time.Duration, bool) {
	th.mu.Lock()
	defer th.mu.Unlock()

	entry := th.pq.peek()
	if entry == nil {
		return 0, false
	}
	return max(time.Until(entry.item.Expiry), 0), true
}

// promoteExpired pops every entry with expiry <= now and hands them to the
// WorkQueue as one batch, in ascending expiry order.
func (th *TimerHeap) promoteExpired() {
	th.mu.Lock()
	defer th.mu.Unlock()

	now := time.Now()
	var expired []WorkItem
	for th.pq.Len() > 0 {
		entry := th.pq.peek()
		if entry.item.Expiry.After(now) {
			break
		}
		heap.Pop(&th.pq)
		expired = append(expired, entry.item)
	}

	th.target.Promote(expired)
}

// Stop ends the loop and discards every unfired timer. It returns the number
// of discarded timers; repeated calls return zero.
func (th *TimerHeap) Stop() int {
	th.cancel()

	th.mu.Lock()
	defer th.mu.Unlock()

	th.closed = true
	discarded := len(th.pq)
	th.pq = make(timerEntryHeap, 0)
	heap.Init(&th.pq)
	return discarded
}

// Done is closed once the loop has exited.
func (th *TimerHeap) Done() <-chan struct{} {
	return th.done
}

func (th *TimerHeap) Len() int {
	th.mu.Lock()
	defer th.mu.Unlock()
	return len(th.pq)
}
