package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DispatchQueue runs tasks one at a time on a dedicated worker goroutine.
//
// Work enters either the WorkQueue directly (Async, Sync, Flush) or the
// TimerHeap (After). A timer goroutine promotes expired timers into the
// WorkQueue, and the worker drains the WorkQueue batch by batch, executing
// every item outside any lock so tasks may dispatch more work.
//
// No two tasks ever run concurrently. Every task receives a context from
// which CurrentQueue returns a handle on this queue bound to that execution;
// use it for nested dispatch instead of capturing the queue. The handle
// shares all state with the queue, so compare queues with SameQueue rather
// than ==. The queue must outlive the tasks that use it.
type DispatchQueue struct {
	*queueState

	// exec is set on handles given to tasks; nil on the queue itself
	exec *execution
}

// execution identifies one run of a work item on the worker
type execution struct {
	taskID TaskID
}

type queueState struct {
	name   string
	work   *WorkQueue
	timers *TimerHeap

	logger              Logger
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	history  *taskHistory
	rejected atomic.Int64
	running  atomic.Bool
	closed   atomic.Bool

	// current is the execution the worker is running, nil between items
	current atomic.Pointer[execution]

	// ctx is the parent of every task context; it is cancelled once the
	// worker has exited
	ctx    context.Context
	cancel context.CancelFunc

	workerDone   chan struct{}
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// NewDispatchQueue creates a queue and starts its worker and timer
// goroutines. It returns once both goroutines are running, so work dispatched
// right after construction is never lost.
func NewDispatchQueue(opts ...Option) (*DispatchQueue, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	work := NewWorkQueue(o.config.MaxPending, o.config.Overflow)
	q := &DispatchQueue{queueState: &queueState{
		name:                o.config.Name,
		work:                work,
		timers:              NewTimerHeap(work),
		logger:              o.logger,
		panicHandler:        o.panicHandler,
		metrics:             o.metrics,
		rejectedTaskHandler: o.rejectedTaskHandler,
		history:             newTaskHistory(o.config.HistoryCapacity),
		ctx:                 ctx,
		cancel:              cancel,
		workerDone:          make(chan struct{}),
		shutdownChan:        make(chan struct{}),
	}}

	workerReady := make(chan struct{})
	timerReady := make(chan struct{})
	go q.runLoop(workerReady)
	go q.timers.Run(timerReady)
	<-workerReady
	<-timerReady

	q.logger.Info("dispatch queue started",
		F("queue", q.name),
		F("max_pending", o.config.MaxPending),
		F("overflow", string(o.config.Overflow)),
	)
	return q, nil
}

// Name returns the name of the queue
func (q *DispatchQueue) Name() string {
	return q.name
}

// SameQueue reports whether q and other refer to the same queue.
func (q *DispatchQueue) SameQueue(other *DispatchQueue) bool {
	return q != nil && other != nil && q.queueState == other.queueState
}

// onWorker reports whether q is the handle of the task the worker is running
// right now. Handles from finished tasks report false.
func (q *DispatchQueue) onWorker() bool {
	return q.exec != nil && q.current.Load() == q.exec
}

// executing reports whether ctx belongs to the task this queue is running
// right now.
func (q *DispatchQueue) executing(ctx context.Context) bool {
	h := CurrentQueue(ctx)
	return h.SameQueue(q) && h.onWorker()
}

// =============================================================================
// Dispatch
// =============================================================================

// Async enqueues task and returns immediately.
func (q *DispatchQueue) Async(task Task) error {
	return q.AsyncNamed("", task)
}

// AsyncNamed is Async with an explicit name for logs, metrics and history.
func (q *DispatchQueue) AsyncNamed(name string, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	return q.enqueue(newWorkItem(name, task))
}

// After schedules task to run once delay has elapsed. A zero or negative
// delay fires on the timer goroutine's next pass; it is not ordered against
// concurrent Async calls. Scheduled timers cannot be withdrawn, and timers
// still pending at shutdown are discarded.
func (q *DispatchQueue) After(delay time.Duration, task Task) error {
	return q.AfterNamed("", delay, task)
}

// AfterNamed is After with an explicit name.
func (q *DispatchQueue) AfterNamed(name string, delay time.Duration, task Task) error {
	if task == nil {
		return ErrNilTask
	}

	item := newWorkItem(name, task)
	err := ErrClosed
	if !q.closed.Load() {
		err = q.timers.Schedule(delay, item)
	}
	if err != nil {
		q.reject(item.Name, err)
		return err
	}
	return nil
}

// Sync enqueues task and blocks until it has run.
//
// The task and a completion signal are enqueued as one batch, so the signal
// runs right after the task. Sync returns a *PanicError if the task panicked,
// and ctx.Err() if ctx ends first; the task still runs later in that case.
//
// When ctx is the context of the task running on this queue right now, Sync
// runs task inline instead, since waiting for the worker from the worker
// would never return. A context kept past its task goes through the queue
// like any other. A goroutine started by a task must not call Sync with the
// task's context while that task is still running: it would run inline
// alongside it. Calling Sync from a task with an unrelated context deadlocks.
func (q *DispatchQueue) Sync(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if q.executing(ctx) {
		return q.runInline(ctx, task)
	}
	return q.syncItem(ctx, newWorkItem("", task))
}

// Flush blocks until everything enqueued before the call has run.
// Called with the context of the task running on this queue it returns
// immediately.
func (q *DispatchQueue) Flush(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if q.executing(ctx) {
		return nil
	}

	barrier := newWorkItem("flush", func(context.Context) {})
	barrier.internal = true
	return q.syncItem(ctx, barrier)
}

func (q *DispatchQueue) syncItem(ctx context.Context, item WorkItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Call-scoped latch; written only by the worker before done is closed
	done := make(chan struct{})
	var panicErr *PanicError
	item.onPanic = func(pe *PanicError) { panicErr = pe }

	if err := q.enqueue(item, newSignalItem(func() { close(done) })); err != nil {
		return err
	}

	select {
	case <-done:
		if panicErr != nil {
			return panicErr
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *DispatchQueue) runInline(ctx context.Context, task Task) error {
	if pe := q.run(ctx, newWorkItem("", task)); pe != nil {
		return pe
	}
	return nil
}

// enqueue hands items to the worker. Nested dispatch from the running task
// skips the blocking bound: only the worker can make room, so it would wait
// on itself forever.
func (q *DispatchQueue) enqueue(items ...WorkItem) error {
	err := ErrClosed
	if !q.closed.Load() {
		if q.onWorker() {
			err = q.work.EnqueueFromWorker(items...)
		} else {
			err = q.work.Enqueue(items...)
		}
	}
	if err != nil {
		q.reject(items[0].Name, err)
		return err
	}
	return nil
}

func (q *DispatchQueue) reject(taskName string, err error) {
	reason := rejectReason(err)
	q.rejected.Add(1)
	q.metrics.RecordTaskRejected(q.name, reason)
	q.rejectedTaskHandler.HandleRejectedTask(q.name, taskName, reason)
}

// =============================================================================
// Worker
// =============================================================================

// runLoop is the worker; it occupies a dedicated goroutine
func (q *DispatchQueue) runLoop(ready chan<- struct{}) {
	defer close(q.workerDone)
	defer q.cancel()

	close(ready)

	for {
		batch, ok := q.work.WaitBatch()
		if !ok {
			break
		}

		q.metrics.RecordQueueDepth(q.name, len(batch))
		q.running.Store(true)
		for i := range batch {
			q.execute(batch[i])
			batch[i] = WorkItem{} // release the task
		}
		q.running.Store(false)
	}

	executed, panicked := q.history.Counters()
	q.logger.Info("dispatch queue stopped",
		F("queue", q.name),
		F("executed", executed),
		F("panicked", panicked),
		F("rejected", q.rejected.Load()),
	)
}

// execute runs one item on the worker under a fresh execution handle.
func (q *DispatchQueue) execute(item WorkItem) {
	if item.internal {
		q.run(q.ctx, item)
		return
	}

	exec := &execution{taskID: item.ID}
	handle := &DispatchQueue{queueState: q.queueState, exec: exec}
	ctx := context.WithValue(q.ctx, dispatchQueueKey, handle)

	q.current.Store(exec)
	q.run(ctx, item)
	q.current.Store(nil)
}

// run executes item on the calling goroutine. Panics are recovered, reported
// and returned so the worker keeps serving the queue.
func (q *DispatchQueue) run(ctx context.Context, item WorkItem) (pe *PanicError) {
	startedAt := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			pe = &PanicError{Value: rec, Stack: debug.Stack()}
			if item.onPanic != nil {
				item.onPanic(pe)
			}
			q.reportPanic(ctx, item, pe)
		}
		if item.internal {
			return
		}

		finishedAt := time.Now()
		duration := finishedAt.Sub(startedAt)
		q.metrics.RecordTaskDuration(q.name, item.Origin, duration)
		if item.IsTimer() {
			q.metrics.RecordTimerLateness(q.name, startedAt.Sub(item.Expiry))
		}
		q.history.Add(TaskExecutionRecord{
			TaskID:     item.ID,
			Name:       item.Name,
			QueueName:  q.name,
			Origin:     item.Origin,
			Expiry:     item.Expiry,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   duration,
			Panicked:   pe != nil,
		})
	}()

	item.Task(ctx)
	return nil
}

func (q *DispatchQueue) reportPanic(ctx context.Context, item WorkItem, pe *PanicError) {
	q.metrics.RecordTaskPanic(q.name, pe.Value)
	q.panicHandler.HandlePanic(ctx, q.name, item, pe.Value, pe.Stack)
}

// =============================================================================
// Lifecycle
// =============================================================================

// Shutdown stops accepting work without waiting.
//
// After calling Shutdown():
// - Async, After, Sync and Flush fail with ErrClosed
// - Timers that have not fired yet are discarded
// - Work already in the queue still runs, then the worker exits
// - WaitShutdown() returns and IsClosed() reports true
//
// Unlike Stop(), it is safe to call from a task on this queue.
func (q *DispatchQueue) Shutdown() {
	q.shutdownOnce.Do(func() {
		q.closed.Store(true)
		// Timers go first so no promotion can land behind the final drain
		discarded := q.timers.Stop()
		q.work.Close()
		close(q.shutdownChan)

		q.logger.Info("dispatch queue shutting down",
			F("queue", q.name),
			F("pending", q.work.Len()),
			F("discarded_timers", discarded),
		)
	})
}

// Stop shuts the queue down and waits until the worker has drained the
// queued work and both goroutines have exited. Repeated calls are safe and
// return immediately once stopped. Stop must not be called from a task on
// this queue; use Shutdown there.
func (q *DispatchQueue) Stop() {
	q.Shutdown()
	<-q.timers.Done()
	<-q.workerDone
}

// IsClosed returns true once Shutdown or Stop has been called
func (q *DispatchQueue) IsClosed() bool {
	return q.closed.Load()
}

// WaitShutdown blocks until Shutdown() is called on this queue.
// Returns error if context is cancelled or deadline exceeded.
func (q *DispatchQueue) WaitShutdown(ctx context.Context) error {
	select {
	case <-q.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// Observability
// =============================================================================

// Stats returns a snapshot of the queue state.
func (q *DispatchQueue) Stats() QueueStats {
	executed, panicked := q.history.Counters()
	stats := QueueStats{
		Name:          q.name,
		Pending:       q.work.Len(),
		PendingTimers: q.work.TimerLen(),
		Scheduled:     q.timers.Len(),
		Running:       q.running.Load(),
		Executed:      executed,
		Panicked:      panicked,
		Rejected:      q.rejected.Load(),
		Closed:        q.closed.Load(),
	}
	if last, ok := q.history.Last(); ok {
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

// RecentTasks returns up to limit execution records, newest first.
func (q *DispatchQueue) RecentTasks(limit int) []TaskExecutionRecord {
	return q.history.Recent(limit)
}

// LastTask returns the most recent execution record.
func (q *DispatchQueue) LastTask() (TaskExecutionRecord, bool) {
	return q.history.Last()
}
