package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is the unit of work (Closure).
// The context carries the DispatchQueue executing the task, see CurrentQueue.
type Task func(ctx context.Context)

// =============================================================================
// Origin: where a WorkItem came from
// =============================================================================

type Origin int

const (
	// OriginDispatch marks items posted directly through Async or Sync.
	OriginDispatch Origin = iota

	// OriginTimer marks items promoted from the timer heap.
	OriginTimer
)

func (o Origin) String() string {
	switch o {
	case OriginDispatch:
		return "dispatch"
	case OriginTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// =============================================================================
// TaskID
// =============================================================================

// TaskID identifies a single submitted task in history records and logs.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// =============================================================================
// WorkItem
// =============================================================================

// WorkItem wraps a Task with its origin and expiry.
// Expiry is only meaningful when Origin is OriginTimer.
type WorkItem struct {
	Task   Task
	Expiry time.Time
	Origin Origin
	ID     TaskID
	Name   string

	// internal items (completion signals) are machinery and skip history/metrics
	internal bool

	// onPanic receives the recovered panic of a Sync task before its
	// completion signal runs
	onPanic func(*PanicError)
}

func newWorkItem(name string, task Task) WorkItem {
	return WorkItem{
		Task:   task,
		Origin: OriginDispatch,
		ID:     GenerateTaskID(),
		Name:   resolveTaskName(task, name),
	}
}

func newSignalItem(signal func()) WorkItem {
	return WorkItem{
		Task:     func(context.Context) { signal() },
		Origin:   OriginDispatch,
		Name:     "completion-signal",
		internal: true,
	}
}

// IsTimer reports whether the item was promoted from the timer heap.
func (w WorkItem) IsTimer() bool {
	return w.Origin == OriginTimer
}

// =============================================================================
// Context Helper
// =============================================================================
type dispatchQueueKeyType struct{}

var dispatchQueueKey dispatchQueueKeyType

// CurrentQueue returns a handle on the DispatchQueue running the task that
// received ctx, or nil when ctx did not come from a task. The handle is bound
// to that execution: dispatch through it from the running task never waits on
// a full queue. Compare it with SameQueue, not ==.
func CurrentQueue(ctx context.Context) *DispatchQueue {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(dispatchQueueKey); v != nil {
		return v.(*DispatchQueue)
	}
	return nil
}
