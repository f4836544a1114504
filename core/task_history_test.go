package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(name string, panicked bool) TaskExecutionRecord {
	now := time.Now()
	return TaskExecutionRecord{Name: name, StartedAt: now, FinishedAt: now, Panicked: panicked}
}

func recordNames(records []TaskExecutionRecord) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	return names
}

func TestTaskHistory_Empty(t *testing.T) {
	h := newTaskHistory(3)

	assert.Nil(t, h.Recent(0))
	_, ok := h.Last()
	assert.False(t, ok)
}

func TestTaskHistory_Wraparound(t *testing.T) {
	h := newTaskHistory(3)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		h.Add(record(name, name == "d"))
	}

	assert.Equal(t, []string{"e", "d", "c"}, recordNames(h.Recent(0)))
	assert.Equal(t, []string{"e", "d"}, recordNames(h.Recent(2)))
	assert.Equal(t, []string{"e", "d", "c"}, recordNames(h.Recent(10)))

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, "e", last.Name)

	executed, panicked := h.Counters()
	assert.Equal(t, int64(5), executed)
	assert.Equal(t, int64(1), panicked)
}

func TestTaskHistory_NonPositiveCapacityUsesDefault(t *testing.T) {
	h := newTaskHistory(0)

	assert.Len(t, h.items, defaultTaskHistoryCapacity)
}

func namedFunction(ctx context.Context) {}

func TestResolveTaskName(t *testing.T) {
	assert.Equal(t, "explicit", resolveTaskName(namedFunction, "explicit"))
	assert.Equal(t, "anonymous", resolveTaskName(nil, ""))

	name := resolveTaskName(namedFunction, "")
	assert.Equal(t, "core.namedFunction", name)
	assert.False(t, strings.Contains(name, "/"), "import path should be stripped")
}

func TestDispatchQueue_HistoryRecordsTimers(t *testing.T) {
	q := newTestQueue(t)
	fired := make(chan struct{})

	require.NoError(t, q.AfterNamed("tick", 10*time.Millisecond, func(ctx context.Context) { close(fired) }))
	<-fired
	flush(t, q)

	last, ok := q.LastTask()
	require.True(t, ok)
	assert.Equal(t, "tick", last.Name)
	assert.Equal(t, OriginTimer, last.Origin)
	assert.False(t, last.Expiry.IsZero())
	assert.False(t, last.StartedAt.Before(last.Expiry))
	assert.Equal(t, q.Name(), last.QueueName)
}
