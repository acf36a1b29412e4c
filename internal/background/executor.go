package background

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Executor runs fire-and-forget tasks on a bounded worker pool. Notification
// fan-out (message updates, Home refreshes) goes through here so webhook
// handlers can acknowledge Slack within its response deadline.
type Executor struct {
	tasks  chan func(ctx context.Context)
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewExecutor starts workers goroutines consuming a queue of queueSize.
func NewExecutor(workers, queueSize int, logger *zap.Logger) *Executor {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		tasks:  make(chan func(ctx context.Context), queueSize),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.work()
	}
	return e
}

func (e *Executor) work() {
	defer e.wg.Done()
	for task := range e.tasks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Error("Background task panicked", zap.Any("panic", p))
				}
			}()
			task(e.ctx)
		}()
	}
}

// Submit enqueues a task. It reports false when the executor is stopped or
// the queue is full; the caller logs and moves on — background work is
// best-effort by contract.
func (e *Executor) Submit(task func(ctx context.Context)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return false
	}

	select {
	case e.tasks <- task:
		return true
	default:
		e.logger.Warn("Background queue full; dropping task")
		return false
	}
}

// Stop closes the queue, runs every queued task to completion, and returns
// once the workers exit. Tasks bound their own Slack calls with timeouts; the
// shared context is cancelled only after the drain, to release it.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.tasks)
	e.mu.Unlock()

	e.wg.Wait()
	e.cancel()
}
