// Package workerpool implements a fixed-size goroutine pool that recovers
// panicking jobs, the Go analogue of the teacher's threading pool: each
// worker recovers a panic inside its own loop and keeps running, in place of
// the panic-hook thread-respawn dance a native thread pool needs.
package workerpool

import (
	"errors"
	"sync"

	"github.com/splinter-rs/splinter-go/log"
)

// Job is a unit of work submitted to the pool.
type Job func()

// ErrStopped is returned by Submit once the pool has been stopped.
var ErrStopped = errors.New("workerpool: pool stopped")

// Pool runs submitted Jobs across a fixed number of worker goroutines. A
// job that panics is recovered and logged; the worker that ran it keeps
// running rather than leaking a goroutine, matching the supervised-restart
// behavior of the teacher's thread pool without needing an actual restart
// (a goroutine, unlike an OS thread, survives a recovered panic in its own
// loop).
type Pool struct {
	jobs chan Job
	log  log.Logger

	wg sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New starts a Pool with size worker goroutines; a size below 1 starts one.
func New(size int, logger log.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = log.NewNoOp()
	}
	p := &Pool{
		jobs: make(chan Job, size*4),
		log:  logger,
	}
	p.wg.Add(size)
	for id := 0; id < size; id++ {
		go p.worker(id)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.runJob(id, job)
	}
}

func (p *Pool) runJob(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("workerpool: job panicked, worker recovered", "worker", id, "panic", r)
		}
	}()
	job()
}

// Submit enqueues job for execution. It returns ErrStopped if the pool has
// already been stopped.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.mu.Unlock()

	p.jobs <- job
	return nil
}

// Stop closes the job queue and waits for every worker to drain it. Calls
// after the first return at once.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
}
