// SPDX-License-Identifier: MIT

package task

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = errors.New("pathspace: executor shutting down")

// ErrTaskExpired is returned by Submit when the task reference could
// not be started (mirrors TaskPool::addTask's "task expired before
// enqueue" / "failed to start lazy execution" error paths).
var ErrTaskExpired = errors.New("pathspace: task could not be started")

// Pool is a fixed-size worker pool Executor, grounded on
// original_source/src/pathspace/task/TaskPool.cpp: a shared queue and
// condition variable, idempotent submission of already-started tasks,
// and a graceful shutdown that drains in-flight work before returning.
type Pool struct {
	mu           sync.Mutex
	cond         *sync.Cond
	queue        []*Task
	shuttingDown bool

	activeWorkers atomic.Int64
	activeTasks   atomic.Int64

	group *errgroup.Group
}

// NewPool starts a Pool with the given number of workers (minimum 1).
func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)

	var g errgroup.Group
	p.group = &g
	for i := 0; i < workerCount; i++ {
		p.activeWorkers.Add(1)
		g.Go(func() error {
			p.workerLoop()
			return nil
		})
	}
	return p
}

// Submit attempts the task's Created->Started transition and, on
// success, enqueues it for a worker. If the task has already started
// (e.g. a racing Lazy-category first-read also tried to schedule it),
// Submit treats that as success rather than an error.
func (p *Pool) Submit(t *Task) error {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return ErrShuttingDown
	}
	if t.HasStarted() {
		p.mu.Unlock()
		return nil
	}
	if !t.TryStart() {
		if t.HasStarted() {
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()
		return ErrTaskExpired
	}
	p.queue = append(p.queue, t)
	p.cond.Signal()
	p.mu.Unlock()
	return nil
}

// Shutdown stops accepting new tasks, wakes all workers, and blocks
// until every worker has drained the queue and exited.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		p.group.Wait()
		return
	}
	p.shuttingDown = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.group.Wait()
}

// Size returns the number of worker goroutines currently running; it
// drops to zero once Shutdown has joined them.
func (p *Pool) Size() int {
	return int(p.activeWorkers.Load())
}

func (p *Pool) workerLoop() {
	defer p.activeWorkers.Add(-1)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.shuttingDown {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.shuttingDown {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.activeTasks.Add(1)
		t.run()
		p.activeTasks.Add(-1)
	}
}
