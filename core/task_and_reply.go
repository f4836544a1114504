package core

import (
	"context"
	"time"
)

// TaskWithResult is a task that produces a value for a reply.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult receives the value produced by a TaskWithResult.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// =============================================================================
// Task and Reply
// =============================================================================

// AsyncAndReply runs task on target and, once it returns, dispatches reply
// to replyQueue. A nil replyQueue runs only the task.
//
// The reply is skipped when the task panics; the panic is reported by target
// like any other. If replyQueue has been shut down by then the reply is
// rejected through replyQueue's RejectedTaskHandler.
func AsyncAndReply(target *DispatchQueue, task Task, reply Task, replyQueue *DispatchQueue) error {
	if task == nil || (replyQueue != nil && reply == nil) {
		return ErrNilTask
	}
	return target.Async(wrapTaskAndReply(task, reply, replyQueue))
}

// AsyncAndReplyWithResult runs task on target and hands its result to reply
// on replyQueue.
//
// The task always completes before the reply starts, and the reply sees the
// values the task returned.
//
// Example:
//
//	AsyncAndReplyWithResult(
//	    background,
//	    func(ctx context.Context) (int, error) {
//	        return len("Hello"), nil
//	    },
//	    func(ctx context.Context, length int, err error) {
//	        fmt.Printf("Length: %d\n", length)
//	    },
//	    main,
//	)
func AsyncAndReplyWithResult[T any](
	target *DispatchQueue,
	task TaskWithResult[T],
	reply ReplyWithResult[T],
	replyQueue *DispatchQueue,
) error {
	if task == nil || reply == nil {
		return ErrNilTask
	}
	wrappedTask, wrappedReply := bindResult(task, reply)
	return AsyncAndReply(target, wrappedTask, wrappedReply, replyQueue)
}

// AfterAndReplyWithResult is AsyncAndReplyWithResult with the task delayed.
// Only the task waits; the reply is dispatched as soon as the task returns.
func AfterAndReplyWithResult[T any](
	target *DispatchQueue,
	delay time.Duration,
	task TaskWithResult[T],
	reply ReplyWithResult[T],
	replyQueue *DispatchQueue,
) error {
	if task == nil || reply == nil {
		return ErrNilTask
	}
	wrappedTask, wrappedReply := bindResult(task, reply)
	return target.After(delay, wrapTaskAndReply(wrappedTask, wrappedReply, replyQueue))
}

// bindResult splits a result-producing pair into plain tasks sharing the
// captured result. The reply is only ever dispatched after the task wrote it.
func bindResult[T any](task TaskWithResult[T], reply ReplyWithResult[T]) (Task, Task) {
	var result T
	var err error

	wrappedTask := func(ctx context.Context) {
		result, err = task(ctx)
	}
	wrappedReply := func(ctx context.Context) {
		reply(ctx, result, err)
	}
	return wrappedTask, wrappedReply
}

func wrapTaskAndReply(task Task, reply Task, replyQueue *DispatchQueue) Task {
	if replyQueue == nil {
		return task
	}
	return func(ctx context.Context) {
		// A panic unwinds past the reply to the worker's recover
		task(ctx)
		// A refused reply already reached replyQueue's RejectedTaskHandler
		_ = replyQueue.Async(reply)
	}
}
