package core

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when dispatching to a queue that has been shut down
	ErrClosed = errors.New("dispatch queue is closed")

	// ErrQueueFull is returned by a bounded queue that cannot take the batch
	ErrQueueFull = errors.New("dispatch queue is full")

	// ErrNilTask is returned when a nil task is dispatched
	ErrNilTask = errors.New("task cannot be nil")

	// ErrInvalidConfig is returned when a Config fails validation
	ErrInvalidConfig = errors.New("invalid dispatch queue config")
)

// PanicError is returned by Sync when the task panicked on the worker.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// rejectReason maps a dispatch error to the reason reported to handlers.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrClosed):
		return "shutdown"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	default:
		return "unknown"
	}
}
