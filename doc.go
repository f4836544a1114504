// Package dispatchqueue provides a serial dispatch queue for Go.
//
// A DispatchQueue owns one worker goroutine that runs submitted tasks one at
// a time, and one timer goroutine that moves delayed tasks onto the queue once
// they expire. Producers on any goroutine submit work without managing
// goroutines or locks for the state the queue owns.
//
// # Quick Start
//
// Create a queue and stop it when done:
//
//	q, err := dispatchqueue.New(dispatchqueue.WithName("main"))
//	if err != nil {
//		return err
//	}
//	defer q.Stop()
//
//	q.Async(func(ctx context.Context) {
//		// runs on the queue's worker goroutine
//	})
//
// Or use the process-wide default queue:
//
//	dispatchqueue.InitGlobalDispatchQueue()
//	defer dispatchqueue.ShutdownGlobalDispatchQueue()
//
//	dispatchqueue.Async(func(ctx context.Context) { ... })
//
// # Key Concepts
//
// Async enqueues a task and returns. Sync enqueues a task and waits for it to
// run. Flush waits for everything enqueued before it. After schedules a task
// once a delay has elapsed.
//
// Expired timers are placed ahead of plain work that is still waiting, but
// behind earlier timers, so a timer never waits for a long backlog of Async
// work.
//
// # Thread Safety
//
// No two tasks on a queue ever run concurrently. Each task receives a context
// from which CurrentQueue returns a handle on the queue running it; use it to
// dispatch nested work. Sync with that context runs inline instead of
// deadlocking while the task is running. Compare queues with SameQueue.
//
// # Example
//
//	import (
//		"context"
//		"time"
//
//		dispatchqueue "github.com/Swind/go-dispatch-queue"
//	)
//
//	func main() {
//		q, _ := dispatchqueue.New()
//		defer q.Stop()
//
//		q.Async(func(ctx context.Context) {
//			println("Task 1")
//		})
//		q.After(time.Second, func(ctx context.Context) {
//			println("Task 2 - delayed")
//		})
//		_ = q.Flush(context.Background())
//	}
package dispatchqueue
