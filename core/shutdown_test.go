package core

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

// TestDispatchQueue_Stop_DrainsQueuedWork verifies Stop runs everything already queued
// Given: A queue with 200 slow-ish tasks dispatched right before Stop
// When: Stop is called
// Then: All 200 tasks have executed when Stop returns
func TestDispatchQueue_Stop_DrainsQueuedWork(t *testing.T) {
	// Arrange
	q, err := NewDispatchQueue(WithLogger(NewNoOpLogger()))
	if err != nil {
		t.Fatalf("NewDispatchQueue: %v", err)
	}
	var executed atomic.Int32

	for range 200 {
		_ = q.Async(func(ctx context.Context) {
			time.Sleep(50 * time.Microsecond)
			executed.Add(1)
		})
	}

	// Act
	q.Stop()

	// Assert
	if got := executed.Load(); got != 200 {
		t.Errorf("executed = %d, want 200", got)
	}
}

// TestDispatchQueue_Stop_DiscardsPendingTimers verifies unfired timers never run
// Given: A queue with timers 1 hour and 200ms out
// When: Stop is called immediately
// Then: Stop returns promptly and neither timer ever runs
func TestDispatchQueue_Stop_DiscardsPendingTimers(t *testing.T) {
	// Arrange
	q, err := NewDispatchQueue(WithLogger(NewNoOpLogger()))
	if err != nil {
		t.Fatalf("NewDispatchQueue: %v", err)
	}
	var fired atomic.Int32
	_ = q.After(time.Hour, func(ctx context.Context) { fired.Add(1) })
	_ = q.After(200*time.Millisecond, func(ctx context.Context) { fired.Add(1) })

	// Act
	start := time.Now()
	q.Stop()
	elapsed := time.Since(start)

	// Assert
	if elapsed > time.Second {
		t.Errorf("Stop took %v with pending timers, want prompt return", elapsed)
	}
	time.Sleep(300 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("fired = %d after Stop, want 0", n)
	}
	if s := q.Stats(); s.Scheduled != 0 {
		t.Errorf("Scheduled = %d after Stop, want 0", s.Scheduled)
	}
}

// TestDispatchQueue_Stop_Idempotent verifies repeated Stop calls are safe
func TestDispatchQueue_Stop_Idempotent(t *testing.T) {
	q, err := NewDispatchQueue(WithLogger(NewNoOpLogger()))
	if err != nil {
		t.Fatalf("NewDispatchQueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		q.Stop()
		q.Stop()
		q.Shutdown()
		q.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("repeated Stop hung")
	}
	if !q.IsClosed() {
		t.Error("IsClosed() = false after Stop, want true")
	}
}

// TestDispatchQueue_RejectsAfterShutdown verifies dispatch fails fast once closed
// Given: A queue that has been shut down
// When: Async and After are called
// Then: Both return ErrClosed and each rejection is reported with reason "shutdown"
func TestDispatchQueue_RejectsAfterShutdown(t *testing.T) {
	// Arrange
	rejected := &recordingRejectedHandler{}
	q, err := NewDispatchQueue(WithLogger(NewNoOpLogger()), WithRejectedTaskHandler(rejected))
	if err != nil {
		t.Fatalf("NewDispatchQueue: %v", err)
	}
	q.Stop()

	// Act
	errAsync := q.AsyncNamed("late-async", func(ctx context.Context) {})
	errAfter := q.AfterNamed("late-after", time.Millisecond, func(ctx context.Context) {})

	// Assert
	if !errors.Is(errAsync, ErrClosed) {
		t.Errorf("Async after Stop error = %v, want ErrClosed", errAsync)
	}
	if !errors.Is(errAfter, ErrClosed) {
		t.Errorf("After after Stop error = %v, want ErrClosed", errAfter)
	}
	got := rejected.snapshot()
	want := []string{"late-async:shutdown", "late-after:shutdown"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("rejections = %v, want %v", got, want)
	}
	if r := q.Stats().Rejected; r != 2 {
		t.Errorf("Stats().Rejected = %d, want 2", r)
	}
}

// TestDispatchQueue_ShutdownFromTask verifies a task can shut its own queue down
// Given: A task that calls Shutdown through its context, followed by a queued task
// When: The tasks run
// Then: WaitShutdown returns, the queued task still runs, and Stop completes
func TestDispatchQueue_ShutdownFromTask(t *testing.T) {
	// Arrange
	q, err := NewDispatchQueue(WithLogger(NewNoOpLogger()))
	if err != nil {
		t.Fatalf("NewDispatchQueue: %v", err)
	}
	var tail atomic.Bool
	gate := make(chan struct{})

	// Act
	_ = q.Async(func(ctx context.Context) {
		<-gate
		CurrentQueue(ctx).Shutdown()
	})
	_ = q.Async(func(ctx context.Context) { tail.Store(true) })
	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	waitErr := q.WaitShutdown(ctx)
	q.Stop()

	// Assert
	if waitErr != nil {
		t.Fatalf("WaitShutdown error = %v", waitErr)
	}
	if !tail.Load() {
		t.Error("task queued before Shutdown did not run")
	}
}

// TestDispatchQueue_NestedDispatchDuringDrain verifies nested work is refused once closed
func TestDispatchQueue_NestedDispatchDuringDrain(t *testing.T) {
	q, err := NewDispatchQueue(WithLogger(NewNoOpLogger()), WithRejectedTaskHandler(&recordingRejectedHandler{}))
	if err != nil {
		t.Fatalf("NewDispatchQueue: %v", err)
	}
	release := make(chan struct{})
	nestedErr := make(chan error, 1)

	_ = q.Async(func(ctx context.Context) {
		<-release
		nestedErr <- CurrentQueue(ctx).Async(func(ctx context.Context) {})
	})
	q.Shutdown()
	close(release)
	q.Stop()

	if err := <-nestedErr; !errors.Is(err, ErrClosed) {
		t.Errorf("nested Async during drain error = %v, want ErrClosed", err)
	}
}

// TestDispatchQueue_RepeatedLifecycle verifies construct/stop cycles do not leak goroutines
// Given: The goroutine count before the loop
// When: 50 queues are created, used and stopped
// Then: No cycle deadlocks and the goroutine count returns to baseline
func TestDispatchQueue_RepeatedLifecycle(t *testing.T) {
	// Arrange
	runtime.GC()
	baseline := runtime.NumGoroutine()

	// Act
	for i := range 50 {
		q, err := NewDispatchQueue(WithLogger(NewNoOpLogger()))
		if err != nil {
			t.Fatalf("iteration %d: NewDispatchQueue: %v", i, err)
		}
		_ = q.Async(func(ctx context.Context) {})
		_ = q.After(time.Hour, func(ctx context.Context) {})
		if i%2 == 0 {
			if err := q.Flush(context.Background()); err != nil {
				t.Fatalf("iteration %d: Flush: %v", i, err)
			}
		}
		q.Stop()
	}

	// Assert - allow exiting goroutines a moment to be reaped
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > baseline && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := runtime.NumGoroutine(); n > baseline {
		t.Errorf("goroutines = %d after 50 lifecycles, baseline %d", n, baseline)
	}
}

// TestDispatchQueue_StopWhenIdle verifies Stop does not hang with nothing queued
func TestDispatchQueue_StopWhenIdle(t *testing.T) {
	q, err := NewDispatchQueue(WithLogger(NewNoOpLogger()))
	if err != nil {
		t.Fatalf("NewDispatchQueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		q.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop on an idle queue hung")
	}
}
