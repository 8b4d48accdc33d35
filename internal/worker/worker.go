// Package worker provides the bounded pool that runs per-region detection
// pipelines concurrently.
package worker

import (
	"context"
	"sync"
)

// Task is one unit of work. It receives the pool's context, which carries the
// cycle's wall-clock budget.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of workers. When the context is
// cancelled, workers drain out without starting queued tasks; abandoned
// tasks simply never run, which callers surface as timed out.
type Pool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
}

func NewPool(workers, bufferSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan Task, bufferSize),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			task(ctx)
		}
	}
}

// Submit queues a task. Blocks when the buffer is full.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Close stops accepting tasks and waits for the workers to drain.
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
}
