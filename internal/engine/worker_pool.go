package engine

import (
	"context"
	"sync"
	"sync/atomic"
)

// workerPool runs a fixed number of goroutines over a bounded queue. A job
// that panics is handed to onPanic and the worker keeps going.
type workerPool[T any] struct {
	jobs     chan T
	process  func(ctx context.Context, job T)
	onPanic  func(job T, recovered any)
	inflight atomic.Int64
	wg       sync.WaitGroup
	drain    sync.Once
}

func newWorkerPool[T any](ctx context.Context, workers, depth int, process func(context.Context, T), onPanic func(T, any)) *workerPool[T] {
	if workers < 1 {
		workers = 1
	}
	p := &workerPool[T]{
		jobs:    make(chan T, depth),
		process: process,
		onPanic: onPanic,
	}
	p.wg.Add(workers)
	for range workers {
		go p.work(ctx)
	}
	return p
}

func (p *workerPool[T]) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (p *workerPool[T]) run(ctx context.Context, job T) {
	p.inflight.Add(1)
	defer p.inflight.Add(-1)
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(job, r)
		}
	}()
	p.process(ctx, job)
}

// Submit enqueues job without blocking and reports whether it was accepted.
func (p *workerPool[T]) Submit(job T) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Drain stops accepting work and waits for queued jobs to finish. Safe to
// call more than once.
func (p *workerPool[T]) Drain() {
	p.drain.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

func (p *workerPool[T]) QueueLen() int   { return len(p.jobs) }
func (p *workerPool[T]) QueueCap() int   { return cap(p.jobs) }
func (p *workerPool[T]) InFlight() int64 { return p.inflight.Load() }
