// Package worker runs claim assessments concurrently.
package worker

import (
	"context"
	"sync"
)

// Job is a unit of work producing a result of type R
type Job[R any] interface {
	Execute(ctx context.Context) R
}

// JobFunc adapts a function to the Job interface
type JobFunc[R any] func(ctx context.Context) R

// Execute calls f
func (f JobFunc[R]) Execute(ctx context.Context) R { return f(ctx) }

type indexed[R any] struct {
	index  int
	result R
}

type queued[R any] struct {
	index int
	job   Job[R]
}

// Pool manages a fixed set of workers executing jobs concurrently.
// Results are returned in submission order.
type Pool[R any] struct {
	workers    int
	jobQueue   chan queued[R]
	results    chan indexed[R]
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	submitted  int
	collected  []indexed[R]
	done       chan struct{}
}

// NewPool creates a pool with the given number of workers bound to ctx
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool[R]{
		workers:    workers,
		jobQueue:   make(chan queued[R], workers*2),
		results:    make(chan indexed[R], workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
		done:       make(chan struct{}),
	}
}

// Start starts the workers and the result collector
func (p *Pool[R]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

func (p *Pool[R]) collect() {
	defer close(p.done)
	for r := range p.results {
		p.collected = append(p.collected, r)
	}
}

func (p *Pool[R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := q.job.Execute(p.ctx)
			select {
			case p.results <- indexed[R]{index: q.index, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns false if the pool has been shut down.
// Submit must not be called concurrently with itself or after Wait.
func (p *Pool[R]) Submit(job Job[R]) bool {
	q := queued[R]{index: p.submitted, job: job}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- q:
		p.submitted++
		return true
	}
}

// Wait closes the queue, waits for the workers and returns the results in
// submission order. Jobs dropped by a shutdown leave zero values.
func (p *Pool[R]) Wait() []R {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.done

	out := make([]R, p.submitted)
	for _, r := range p.collected {
		out[r.index] = r.result
	}
	p.cancelFunc()
	return out
}

// Shutdown stops the workers without waiting for queued jobs
func (p *Pool[R]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	<-p.done
}

func (p *Pool[R]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// Run executes jobs on a pool of the given size and returns their results
// in order.
func Run[R any](ctx context.Context, workers int, jobs []Job[R]) []R {
	pool := NewPool[R](ctx, workers)
	pool.Start()
	for _, job := range jobs {
		if !pool.Submit(job) {
			break
		}
	}
	return pool.Wait()
}
