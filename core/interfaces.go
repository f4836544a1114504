package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// The worker recovers every panic, reports it here and moves on to the next
// item, so one failing task never takes the queue down.
//
// HandlePanic runs on the worker goroutine; it should return quickly.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context handed to the task
	// - queueName: The name of the dispatch queue
	// - item: The item whose task panicked
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, queueName string, item WorkItem, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	logger Logger
}

func NewDefaultPanicHandler(logger Logger) *DefaultPanicHandler {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &DefaultPanicHandler{logger: logger}
}

// HandlePanic logs the panic value and stack at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, queueName string, item WorkItem, panicInfo any, stackTrace []byte) {
	h.logger.Error("task panicked",
		F("queue", queueName),
		F("task", item.Name),
		F("task_id", item.ID.String()),
		F("origin", item.Origin.String()),
		F("panic", panicInfo),
		F("stack", stackTrace),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called on the hot path and should be non-blocking and fast.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(queueName string, origin Origin, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(queueName string, panicInfo any)

	// RecordQueueDepth records the number of items the worker picked up in
	// one drain.
	RecordQueueDepth(queueName string, depth int)

	// RecordTaskRejected records that a dispatch was refused.
	// reason is "shutdown" or "queue_full".
	RecordTaskRejected(queueName string, reason string)

	// RecordTimerLateness records how long after its expiry a timer task
	// started running.
	RecordTimerLateness(queueName string, lateness time.Duration)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(queueName string, origin Origin, duration time.Duration) {
}

func (m *NilMetrics) RecordTaskPanic(queueName string, panicInfo any) {
}

func (m *NilMetrics) RecordQueueDepth(queueName string, depth int) {
}

func (m *NilMetrics) RecordTaskRejected(queueName string, reason string) {
}

func (m *NilMetrics) RecordTimerLateness(queueName string, lateness time.Duration) {
}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a dispatch is refused, either because
// the queue is shutting down or because a bounded queue is full.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(queueName string, taskName string, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks at warn level.
type DefaultRejectedTaskHandler struct {
	logger Logger
}

func NewDefaultRejectedTaskHandler(logger Logger) *DefaultRejectedTaskHandler {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &DefaultRejectedTaskHandler{logger: logger}
}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(queueName string, taskName string, reason string) {
	h.logger.Warn("task rejected",
		F("queue", queueName),
		F("task", taskName),
		F("reason", reason),
	)
}
