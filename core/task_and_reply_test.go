package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAsyncAndReply_RunsReplyOnReplyQueue verifies the reply hops queues
// Given: A background queue and a reply queue
// When: AsyncAndReply is called
// Then: The task runs on the background queue, then the reply runs on the reply queue
func TestAsyncAndReply_RunsReplyOnReplyQueue(t *testing.T) {
	// Arrange
	background := newTestQueue(t, WithName("background"))
	replies := newTestQueue(t, WithName("replies"))
	taskQueue := make(chan *DispatchQueue, 1)
	replyQueue := make(chan *DispatchQueue, 1)

	// Act
	err := AsyncAndReply(background,
		func(ctx context.Context) { taskQueue <- CurrentQueue(ctx) },
		func(ctx context.Context) { replyQueue <- CurrentQueue(ctx) },
		replies,
	)

	// Assert
	require.NoError(t, err)
	assert.True(t, background.SameQueue(<-taskQueue))
	assert.True(t, replies.SameQueue(<-replyQueue))
}

// TestAsyncAndReplyWithResult_PassesResult verifies the reply sees the task's values
func TestAsyncAndReplyWithResult_PassesResult(t *testing.T) {
	background := newTestQueue(t)
	replies := newTestQueue(t)
	type outcome struct {
		value int
		err   error
	}
	got := make(chan outcome, 1)
	wantErr := errors.New("partial")

	err := AsyncAndReplyWithResult(background,
		func(ctx context.Context) (int, error) { return 123 + 456, wantErr },
		func(ctx context.Context, sum int, err error) { got <- outcome{sum, err} },
		replies,
	)

	require.NoError(t, err)
	res := <-got
	assert.Equal(t, 579, res.value)
	assert.ErrorIs(t, res.err, wantErr)
}

// TestAsyncAndReply_PanicSkipsReply verifies a panicking task never replies
// Given: A task that panics
// When: It runs through AsyncAndReply
// Then: The panic is reported by the task's queue and no reply is dispatched
func TestAsyncAndReply_PanicSkipsReply(t *testing.T) {
	// Arrange
	handler := &recordingPanicHandler{}
	background := newTestQueue(t, WithPanicHandler(handler))
	replies := newTestQueue(t)
	replied := make(chan struct{}, 1)

	// Act
	err := AsyncAndReply(background,
		func(ctx context.Context) { panic("no reply") },
		func(ctx context.Context) { replied <- struct{}{} },
		replies,
	)
	require.NoError(t, err)
	flush(t, background)
	flush(t, replies)

	// Assert
	assert.Len(t, handler.snapshot(), 1)
	assert.Empty(t, replied)
}

// TestAsyncAndReply_ReplyQueueClosed verifies a refused reply is reported, not lost silently
// Given: A reply queue that has been stopped
// When: The task finishes and tries to reply
// Then: The reply queue's rejected handler records it and the task queue keeps working
func TestAsyncAndReply_ReplyQueueClosed(t *testing.T) {
	// Arrange
	background := newTestQueue(t)
	rejected := &recordingRejectedHandler{}
	replies := newTestQueue(t, WithName("replies"), WithRejectedTaskHandler(rejected))
	replies.Stop()

	// Act
	err := AsyncAndReply(background,
		func(ctx context.Context) {},
		func(ctx context.Context) {},
		replies,
	)
	require.NoError(t, err)
	flush(t, background)

	// Assert
	require.Len(t, rejected.snapshot(), 1)
	assert.Contains(t, rejected.snapshot()[0], ":shutdown")
	assert.Equal(t, int64(1), replies.Stats().Rejected)
}

// TestAfterAndReplyWithResult_DelaysTaskOnly verifies only the task waits
func TestAfterAndReplyWithResult_DelaysTaskOnly(t *testing.T) {
	background := newTestQueue(t)
	replies := newTestQueue(t)
	start := time.Now()
	got := make(chan time.Duration, 1)

	err := AfterAndReplyWithResult(background, 30*time.Millisecond,
		func(ctx context.Context) (string, error) { return "hello", nil },
		func(ctx context.Context, s string, err error) { got <- time.Since(start) },
		replies,
	)
	require.NoError(t, err)

	select {
	case elapsed := <-got:
		assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("reply never ran")
	}
}

// TestAsyncAndReply_NilArguments verifies nil tasks are refused
func TestAsyncAndReply_NilArguments(t *testing.T) {
	q := newTestQueue(t)

	assert.ErrorIs(t, AsyncAndReply(q, nil, func(ctx context.Context) {}, q), ErrNilTask)
	assert.ErrorIs(t, AsyncAndReply(q, func(ctx context.Context) {}, nil, q), ErrNilTask)
	assert.NoError(t, AsyncAndReply(q, func(ctx context.Context) {}, nil, nil))
	assert.ErrorIs(t, AsyncAndReplyWithResult[int](q, nil, nil, q), ErrNilTask)
}
