package workerpool

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a unit of work.
type Task func()

// Pool runs tasks on a fixed set of workers with a bounded queue. The
// realtime hub uses it so a slow fan-out never blocks a handler.
type Pool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
}

// New starts workers goroutines draining a queue of queueSize.
func New(workers, queueSize int, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		taskQueue: make(chan Task, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						p.logger.Error("task panic recovered",
							"worker_id", id, "panic", r)
					}
				}()
				task()
			}()
		}
	}
}

// Submit enqueues a task, blocking while the queue is full. Returns
// false after shutdown.
func (p *Pool) Submit(task Task) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.taskQueue <- task:
		return true
	}
}

// TrySubmit enqueues without blocking; false when the queue is full.
func (p *Pool) TrySubmit(task Task) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Shutdown stops the workers. The queue is left open so a racing
// Submit fails via the context instead of panicking on a closed channel.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
