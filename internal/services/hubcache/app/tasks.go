package app

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"
)

const defaultTaskConcurrency = 4

// TaskRunner runs fire-and-forget side effects with bounded concurrency.
// Failures are logged, never returned to the submitter.
type TaskRunner struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	logf   func(string, ...any)

	mu      sync.Mutex
	closed  bool
	running int
	wg      sync.WaitGroup
}

// NewTaskRunner returns a runner executing at most concurrency tasks at once.
func NewTaskRunner(concurrency int) *TaskRunner {
	if concurrency <= 0 {
		concurrency = defaultTaskConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRunner{
		sem:    semaphore.NewWeighted(int64(concurrency)),
		ctx:    ctx,
		cancel: cancel,
		logf:   log.Printf,
	}
}

// Submit queues task without blocking. After Close, submissions are still
// accepted while earlier tasks are running, so follow-up work such as the
// archive write of a draining refresh completes. Once the runner is closed
// and idle, Submit reports false.
func (r *TaskRunner) Submit(name string, task func(context.Context) error) bool {
	if r == nil || task == nil {
		return false
	}
	r.mu.Lock()
	if r.closed && r.running == 0 {
		r.mu.Unlock()
		r.logf("background task %s dropped: runner closed", name)
		return false
	}
	r.running++
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.done()
		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			r.logf("background task %s not started: %v", name, err)
			return
		}
		defer r.sem.Release(1)
		if err := task(r.ctx); err != nil {
			r.logf("background task %s failed: %v", name, err)
		}
	}()
	return true
}

// done releases the running slot before the WaitGroup so a concurrent
// Submit never adds to a drained group.
func (r *TaskRunner) done() {
	r.mu.Lock()
	r.running--
	r.mu.Unlock()
	r.wg.Done()
}

// Wait blocks until every submitted task has finished.
func (r *TaskRunner) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// Close drains submitted tasks, including follow-ups they submit, then
// rejects new ones.
func (r *TaskRunner) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
	r.cancel()
}
