// Package worker runs fire-and-forget background tasks on a bounded pool of
// goroutines that keeps running after the submitting request has returned.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/dukerupert/imgbed/internal/metrics"
	"github.com/google/uuid"
)

// Compile-time interface check
var _ imgbed.TaskRunner = (*Pool)(nil)

// Config holds configuration for the worker pool.
type Config struct {
	WorkerCount     int           // Number of concurrent workers
	QueueSize       int           // Buffered tasks before Submit runs inline
	TaskTimeout     time.Duration // Default timeout for a task run
	ShutdownTimeout time.Duration // How long Stop waits for queued tasks
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount:     2,
		QueueSize:       256,
		TaskTimeout:     10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// job is a submitted task with its correlation ID.
type job struct {
	id   uuid.UUID
	task imgbed.Task
}

// Pool manages workers that run submitted tasks.
type Pool struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	config  Config

	jobs chan job
	wg   sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewPool creates a new worker pool. Call Start before submitting tasks.
func NewPool(logger *slog.Logger, m *metrics.Metrics, config Config) *Pool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	return &Pool{
		logger:  logger,
		metrics: m,
		config:  config,
		jobs:    make(chan job, config.QueueSize),
	}
}

// Start starts the workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	p.started = true

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(fmt.Sprintf("worker-%d", i+1))
	}

	p.logger.Info("worker pool started",
		slog.Int("worker_count", p.config.WorkerCount),
		slog.Int("queue_size", p.config.QueueSize),
	)

	return nil
}

// Submit schedules a task. It never blocks on a full queue: when no slot is
// free, or the pool is not running, the task runs on the caller's goroutine
// so that it is never lost.
func (p *Pool) Submit(task imgbed.Task) {
	j := job{id: uuid.New(), task: task}

	p.mu.RLock()
	if p.started && !p.stopped {
		select {
		case p.jobs <- j:
			p.mu.RUnlock()
			return
		default:
		}
	}
	p.mu.RUnlock()

	p.logger.Debug("running task inline",
		slog.String("task_id", j.id.String()),
		slog.String("task", task.Name),
	)
	p.execute(j)
}

// Stop stops accepting tasks and waits for queued tasks to finish.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("worker pool not started")
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.logger.Info("stopping worker pool", slog.Int("pending", len(p.jobs)))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("worker pool shutdown timeout",
			slog.Duration("timeout", p.config.ShutdownTimeout),
		)
		return fmt.Errorf("shutdown timeout after %v", p.config.ShutdownTimeout)
	}
}

// worker is the main worker loop. It exits once the queue is closed and
// drained.
func (p *Pool) worker(workerID string) {
	defer p.wg.Done()

	p.logger.Debug("worker started", slog.String("worker_id", workerID))
	for j := range p.jobs {
		p.execute(j)
	}
	p.logger.Debug("worker stopping", slog.String("worker_id", workerID))
}

// execute runs a task with its own timeout and records the outcome.
// Failures are logged and never retried.
func (p *Pool) execute(j job) {
	timeout := j.task.Timeout
	if timeout <= 0 {
		timeout = p.config.TaskTimeout
	}

	ctx := context.Background()
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now()
	err := p.run(ctx, j.task)
	duration := time.Since(start)
	p.metrics.RecordTask(j.task.Name, duration, err)

	if err != nil {
		p.logger.Warn("task failed",
			slog.String("task_id", j.id.String()),
			slog.String("task", j.task.Name),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return
	}

	p.logger.Debug("task completed",
		slog.String("task_id", j.id.String()),
		slog.String("task", j.task.Name),
		slog.Duration("duration", duration),
	)
}

// run calls the task, converting a panic into an error.
func (p *Pool) run(ctx context.Context, task imgbed.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if task.Run == nil {
		return fmt.Errorf("task %q has no run function", task.Name)
	}
	return task.Run(ctx)
}
