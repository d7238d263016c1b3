package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken
	ErrQueueFull = errors.New("worker queue is full")
	// ErrPoolStopped is returned by Submit after Stop
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Task is one unit of background work. The context is cancelled when the pool stops.
type Task struct {
	ID  string
	Run func(ctx context.Context)
}

// Pool manages a pool of worker goroutines for concurrent job execution
type Pool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a new worker pool
func NewPool(workers, queueSize int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers: max(workers, 1),
		tasks:   make(chan Task, max(queueSize, 1)),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	slog.Info("Starting worker pool", "workers", p.workers, "queue_size", cap(p.tasks))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues a task without blocking
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- task:
		slog.Debug("Task submitted to worker pool", "task_id", task.ID)
		return nil
	default:
		return fmt.Errorf("submit task %s: %w", task.ID, ErrQueueFull)
	}
}

// Stop stops accepting tasks and waits for queued and running tasks to finish.
// When ctx ends first, running tasks are cancelled and Stop returns ctx's error.
func (p *Pool) Stop(ctx context.Context) error {
	slog.Info("Stopping worker pool")

	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		slog.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		slog.Warn("Worker pool stopped before queued tasks finished")
		return ctx.Err()
	}
}

// QueueLength returns the current number of tasks waiting for a worker
func (p *Pool) QueueLength() int {
	return len(p.tasks)
}

// worker is the worker goroutine that processes tasks
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	slog.Debug("Worker started", "worker_id", id)

	for task := range p.tasks {
		slog.Debug("Worker processing task", "worker_id", id, "task_id", task.ID)
		p.run(id, task)
	}

	slog.Debug("Worker stopped", "worker_id", id)
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Task panicked", "worker_id", id, "task_id", task.ID, "panic", r)
		}
	}()
	task.Run(p.ctx)
}
