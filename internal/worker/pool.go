// Package worker runs filesystem jobs on a fixed set of goroutines so
// the connection loop never waits on disk.
package worker

import (
	"context"
	"sync"

	ncerr "telfs/internal/errors"
	"telfs/util"
)

// Job is a unit of work.  It should return promptly once ctx is done.
type Job func(ctx context.Context)

// Pool is a bounded worker pool with a bounded backlog.
type Pool struct {
	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	logger *util.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New starts workers goroutines sharing a queue of depth pending jobs.
// Cancelling ctx asks running jobs to stop early.
func New(ctx context.Context, workers, depth int, logger *util.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if depth < 0 {
		depth = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		jobs:   make(chan Job, depth),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker %d: job panicked: %v", id, r)
		}
	}()
	job(p.ctx)
}

// TrySubmit queues job without blocking.  It returns
// [ncerr.ErrPoolBusy] when the backlog is full and
// [ncerr.ErrPoolClosed] after Close.
func (p *Pool) TrySubmit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ncerr.ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ncerr.ErrPoolBusy
	}
}

// Close stops accepting jobs, lets queued jobs drain and waits for the
// workers to exit.  Abort cancels the context passed to jobs first.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
	p.cancel()
}

// Abort cancels running jobs and then closes the pool.
func (p *Pool) Abort() {
	p.cancel()
	p.Close()
}
