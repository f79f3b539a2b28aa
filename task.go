package imgbed

import (
	"context"
	"time"
)

// Task is a unit of background work.
type Task struct {
	// Name labels the task in logs and metrics.
	Name string

	// Timeout bounds a single run. Zero means the runner's default.
	Timeout time.Duration

	// Run performs the work. The context is independent of any request.
	Run func(ctx context.Context) error
}

// TaskRunner runs tasks after the caller has moved on. A submitted task is
// guaranteed to run to completion (or its timeout) even if the submitting
// request has already been answered. Its outcome is never reported back.
type TaskRunner interface {
	Submit(task Task)
}

// Common task names.
const (
	TaskRecordMetadata = "record_metadata"
)
