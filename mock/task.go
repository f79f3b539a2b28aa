package mock

import (
	"context"
	"sync"

	"github.com/dukerupert/imgbed"
)

// Compile-time interface check
var _ imgbed.TaskRunner = (*TaskRunner)(nil)

// TaskRunner is a mock implementation of imgbed.TaskRunner. By default it
// runs each task synchronously and records its name and error.
type TaskRunner struct {
	SubmitFn func(task imgbed.Task)

	mu        sync.Mutex
	Submitted []string
	Errors    []error
}

func (r *TaskRunner) Submit(task imgbed.Task) {
	r.mu.Lock()
	r.Submitted = append(r.Submitted, task.Name)
	r.mu.Unlock()

	if r.SubmitFn != nil {
		r.SubmitFn(task)
		return
	}
	if task.Run == nil {
		return
	}
	err := task.Run(context.Background())
	r.mu.Lock()
	r.Errors = append(r.Errors, err)
	r.mu.Unlock()
}
