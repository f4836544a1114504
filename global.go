package dispatchqueue

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Global Dispatch Queue Helper (Singleton)
// =============================================================================

var (
	globalQueue *DispatchQueue
	globalMu    sync.Mutex
)

// InitGlobalDispatchQueue creates and starts the process-wide queue.
// Calling it again while the queue exists is a no-op.
func InitGlobalDispatchQueue(opts ...Option) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalQueue != nil {
		return nil // Already initialized
	}

	opts = append([]Option{WithName("global")}, opts...)
	q, err := New(opts...)
	if err != nil {
		return err
	}
	globalQueue = q
	return nil
}

// GetGlobalDispatchQueue returns the process-wide queue.
// It panics if InitGlobalDispatchQueue has not been called.
func GetGlobalDispatchQueue() *DispatchQueue {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalQueue == nil {
		panic("global dispatch queue not initialized. Call InitGlobalDispatchQueue() first.")
	}
	return globalQueue
}

// ShutdownGlobalDispatchQueue stops the process-wide queue, draining queued
// work, and forgets it so it can be initialized again.
func ShutdownGlobalDispatchQueue() {
	globalMu.Lock()
	q := globalQueue
	globalQueue = nil
	globalMu.Unlock()

	if q != nil {
		q.Stop()
	}
}

// Async dispatches task to the global queue.
func Async(task Task) error {
	return GetGlobalDispatchQueue().Async(task)
}

// After schedules task on the global queue.
func After(delay time.Duration, task Task) error {
	return GetGlobalDispatchQueue().After(delay, task)
}

// Sync runs task on the global queue and waits for it.
func Sync(ctx context.Context, task Task) error {
	return GetGlobalDispatchQueue().Sync(ctx, task)
}

// Flush waits for everything already dispatched to the global queue.
func Flush(ctx context.Context) error {
	return GetGlobalDispatchQueue().Flush(ctx)
}
