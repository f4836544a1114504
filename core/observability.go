package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID     TaskID
	Name       string
	QueueName  string
	Origin     Origin
	Expiry     time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// QueueStats represents runtime observability state for a dispatch queue.
type QueueStats struct {
	Name          string
	Pending       int
	PendingTimers int
	Scheduled     int
	Running       bool
	Executed      int64
	Panicked      int64
	Rejected      int64
	Closed        bool
	LastTaskName  string
	LastTaskAt    time.Time
}
