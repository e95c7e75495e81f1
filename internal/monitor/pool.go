package monitor

import (
	"fmt"
	"sync"
)

// Pool is a fixed set of worker goroutines that live for one generation.
// Jobs are run in submission order by whichever worker is free.
type Pool struct {
	mu        sync.RWMutex
	jobs      chan func()
	wg        sync.WaitGroup
	size      int
	closed    bool
	closeOnce sync.Once
}

// NewPool starts size workers. A size below one is treated as one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		jobs: make(chan func()),
		size: size,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Submit hands job to a worker, blocking until one is free.
func (p *Pool) Submit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("worker pool is closed")
	}
	p.jobs <- job
	return nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Close stops accepting jobs and waits for running ones to finish.
// Safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
