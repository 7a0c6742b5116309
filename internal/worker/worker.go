// Package worker runs one goroutine per key so jobs for the same key are
// handled in order while different keys proceed in parallel, bounded by a
// shared semaphore.
package worker

import (
	"context"
	"errors"
	"sync"
)

type StartOptions[J any] struct {
	Ctx    context.Context
	Sem    chan struct{}
	Jobs   <-chan J
	Handle func(context.Context, J)
	// Done is called once per job after Handle returns or the job is dropped.
	Done func()
}

func Start[J any](opts StartOptions[J]) {
	done := opts.Done
	if done == nil {
		done = func() {}
	}
	go func() {
		for {
			select {
			case <-opts.Ctx.Done():
				return
			case job, ok := <-opts.Jobs:
				if !ok {
					return
				}
				select {
				case opts.Sem <- struct{}{}:
				case <-opts.Ctx.Done():
					done()
					return
				}
				func() {
					defer done()
					defer func() { <-opts.Sem }()
					opts.Handle(opts.Ctx, job)
				}()
			}
		}
	}()
}

func Enqueue[J any](ctx, workersCtx context.Context, jobs chan<- J, job J) error {
	if ctx == nil {
		ctx = workersCtx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-workersCtx.Done():
		return workersCtx.Err()
	case jobs <- job:
		return nil
	}
}

var ErrPoolClosed = errors.New("worker: pool closed")

const DefaultQueueSize = 16

type PoolOptions[K comparable, J any] struct {
	// MaxConcurrency bounds jobs running at once across all keys.
	MaxConcurrency int
	QueueSize      int
	Handle         func(ctx context.Context, key K, job J)
}

// Pool starts a worker the first time a key is seen. Workers live until the
// pool is closed.
type Pool[K comparable, J any] struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sem     chan struct{}
	queue   int
	handle  func(context.Context, K, J)
	mu      sync.Mutex
	workers map[K]chan J
	closed  bool
	pending sync.WaitGroup
}

func NewPool[K comparable, J any](opts PoolOptions[K, J]) *Pool[K, J] {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool[K, J]{
		ctx:     ctx,
		cancel:  cancel,
		sem:     make(chan struct{}, opts.MaxConcurrency),
		queue:   opts.QueueSize,
		handle:  opts.Handle,
		workers: map[K]chan J{},
	}
}

// Submit queues job for key. It blocks while the key's queue is full.
func (p *Pool[K, J]) Submit(ctx context.Context, key K, job J) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	jobs, ok := p.workers[key]
	if !ok {
		jobs = make(chan J, p.queue)
		p.workers[key] = jobs
		Start(StartOptions[J]{
			Ctx:  p.ctx,
			Sem:  p.sem,
			Jobs: jobs,
			Handle: func(ctx context.Context, j J) {
				p.handle(ctx, key, j)
			},
			Done: p.pending.Done,
		})
	}
	p.pending.Add(1)
	p.mu.Unlock()

	if err := Enqueue(ctx, p.ctx, jobs, job); err != nil {
		p.pending.Done()
		return err
	}
	return nil
}

// Drain waits until every queued job has been handled.
func (p *Pool[K, J]) Drain() {
	p.pending.Wait()
}

// Close stops accepting jobs, waits for queued ones, then stops the workers.
func (p *Pool[K, J]) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.pending.Wait()
	p.cancel()
}
