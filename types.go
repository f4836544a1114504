package dispatchqueue

import (
	"time"

	"github.com/Swind/go-dispatch-queue/core"
)

// Re-export commonly used types from core package for convenience.
// This allows users to import only the dispatchqueue package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// DispatchQueue runs tasks one at a time on a dedicated goroutine
type DispatchQueue = core.DispatchQueue

// Option configures a DispatchQueue
type Option = core.Option

// Config holds the tunables of a DispatchQueue
type Config = core.Config

// OverflowPolicy decides what a bounded queue does when full
type OverflowPolicy = core.OverflowPolicy

// QueueStats is a snapshot returned by DispatchQueue.Stats
type QueueStats = core.QueueStats

// TaskExecutionRecord is one entry of the execution history
type TaskExecutionRecord = core.TaskExecutionRecord

// PanicError is returned by Sync when the task panicked
type PanicError = core.PanicError

// Logger, hooks and their defaults
type (
	Logger              = core.Logger
	PanicHandler        = core.PanicHandler
	Metrics             = core.Metrics
	RejectedTaskHandler = core.RejectedTaskHandler
)

// TaskWithResult and ReplyWithResult for the generic AsyncAndReply pattern
type TaskWithResult[T any] = core.TaskWithResult[T]
type ReplyWithResult[T any] = core.ReplyWithResult[T]

const (
	OverflowBlock  = core.OverflowBlock
	OverflowReject = core.OverflowReject
)

var (
	ErrClosed        = core.ErrClosed
	ErrQueueFull     = core.ErrQueueFull
	ErrNilTask       = core.ErrNilTask
	ErrInvalidConfig = core.ErrInvalidConfig
)

// Options re-exported from core
var (
	WithConfig              = core.WithConfig
	WithName                = core.WithName
	WithMaxPending          = core.WithMaxPending
	WithHistoryCapacity     = core.WithHistoryCapacity
	WithLogger              = core.WithLogger
	WithPanicHandler        = core.WithPanicHandler
	WithMetrics             = core.WithMetrics
	WithRejectedTaskHandler = core.WithRejectedTaskHandler
)

// LoadConfig reads a Config from DISPATCH_QUEUE_* environment variables
var LoadConfig = core.LoadConfig

// CurrentQueue retrieves the handle of the DispatchQueue running the task from context
var CurrentQueue = core.CurrentQueue

// AsyncAndReply runs task on target, then reply on replyQueue
var AsyncAndReply = core.AsyncAndReply

// New creates and starts a DispatchQueue.
func New(opts ...Option) (*DispatchQueue, error) {
	return core.NewDispatchQueue(opts...)
}

// AsyncAndReplyWithResult runs task on target and hands its result to reply on replyQueue.
func AsyncAndReplyWithResult[T any](target *DispatchQueue, task TaskWithResult[T], reply ReplyWithResult[T], replyQueue *DispatchQueue) error {
	return core.AsyncAndReplyWithResult(target, task, reply, replyQueue)
}

// AfterAndReplyWithResult delays task on target, then hands its result to reply on replyQueue.
func AfterAndReplyWithResult[T any](target *DispatchQueue, delay time.Duration, task TaskWithResult[T], reply ReplyWithResult[T], replyQueue *DispatchQueue) error {
	return core.AfterAndReplyWithResult(target, delay, task, reply, replyQueue)
}
