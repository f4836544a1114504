package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Swind/go-dispatch-queue/core"
)

type scenario struct {
	timers     int
	timerStep  time.Duration
	mainSleep  time.Duration
	boundCount int
	syncSleep  time.Duration
	paramCount int
}

func defaultScenario() scenario {
	return scenario{
		timers:     20,
		timerStep:  50 * time.Millisecond,
		mainSleep:  500 * time.Millisecond,
		boundCount: 1024,
		syncSleep:  time.Second,
		paramCount: 2048,
	}
}

// lockedWriter serializes output between the caller and the worker.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

func (sc scenario) run(ctx context.Context, q *core.DispatchQueue, w io.Writer) error {
	out := &lockedWriter{w: w}

	for i := range sc.timers {
		delay := time.Duration(i) * sc.timerStep
		if err := q.After(delay, func(context.Context) {
			out.printf("dispatch_after(%d)\n", delay.Milliseconds())
		}); err != nil {
			return err
		}
	}
	if err := q.After(5*time.Millisecond, func(context.Context) {
		out.printf("explicit dispatch_after(5)\n")
	}); err != nil {
		return err
	}
	if err := q.After(300*time.Millisecond, func(context.Context) {
		out.printf("explicit dispatch_after(300)\n")
	}); err != nil {
		return err
	}

	if err := q.AsyncNamed("hello", func(context.Context) {
		out.printf("hello world\n")
	}); err != nil {
		return err
	}
	if err := q.AsyncNamed("add", func(context.Context) {
		a, b := 123, 456
		out.printf("%d + %d = %d\n", a, b, a+b)
	}); err != nil {
		return err
	}

	out.printf("sleeping main goroutine for %v...\n", sc.mainSleep)
	if err := sleepCtx(ctx, sc.mainSleep); err != nil {
		return err
	}
	out.printf("main goroutine waking up.\n")

	boundCounter := 0
	for range sc.boundCount {
		if err := q.Async(func(context.Context) { boundCounter++ }); err != nil {
			return err
		}
	}
	if err := q.Flush(ctx); err != nil {
		return err
	}
	out.printf("bound_counter = %d\n", boundCounter)

	out.printf("dispatch_sync sleep for %v...\n", sc.syncSleep)
	if err := q.Sync(ctx, func(context.Context) { time.Sleep(sc.syncSleep) }); err != nil {
		return err
	}
	out.printf("dispatch_sync sleep complete.\n")

	nest := 0
	if err := q.Async(func(ctx context.Context) {
		out.printf("dispatch_async: nesting level %d\n", nest)
		nest++
		_ = core.CurrentQueue(ctx).Async(func(ctx context.Context) {
			out.printf("dispatch_async: nesting level %d\n", nest)
			nest++
			_ = core.CurrentQueue(ctx).Async(func(ctx context.Context) {
				out.printf("dispatch_async: nesting level %d\n", nest)
				nest++
			})
		})
	}); err != nil {
		return err
	}

	paramCounter := 0
	increment := func(c *int) core.Task {
		return func(context.Context) { *c++ }
	}
	for range sc.paramCount {
		if err := q.Async(increment(&paramCounter)); err != nil {
			return err
		}
	}
	if err := q.Flush(ctx); err != nil {
		return err
	}
	out.printf("param_counter = %d\n", paramCounter)
	return nil
}
