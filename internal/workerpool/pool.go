package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task is a unit of work submitted to the pool. ctx is the pool context and
// is cancelled once the pool has been drained.
type Task func(ctx context.Context)

// PanicHandler is called with the recovered value when a task panics.
type PanicHandler func(recovered any)

// Pool is a bounded goroutine pool with a fixed-size task queue.
type Pool struct {
	logger     *zap.Logger
	maxWorkers int
	queue      chan Task
	wg         sync.WaitGroup
	accepting  atomic.Bool
	stopOnce   sync.Once
	closeOnce  sync.Once
	stopChan   chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	onPanic    PanicHandler
	panics     atomic.Int64
}

// Option configures a Pool.
type Option func(*Pool)

// WithPanicHandler registers a callback for recovered task panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(p *Pool) { p.onPanic = h }
}

// New creates a pool with maxWorkers goroutines and a task queue of queueSize.
func New(logger *zap.Logger, maxWorkers, queueSize int, opts ...Option) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		logger:     logger,
		maxWorkers: maxWorkers,
		queue:      make(chan Task, queueSize),
		stopChan:   make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.accepting.Store(true)

	for i := 0; i < maxWorkers; i++ {
		go p.worker()
	}

	p.logger.Debug("worker pool started",
		zap.Int("workers", maxWorkers),
		zap.Int("queueSize", queueSize),
	)
	return p
}

// Panics returns the number of tasks that panicked so far.
func (p *Pool) Panics() int64 {
	return p.panics.Load()
}

// Submit enqueues a task. Returns false if the pool is stopped or the queue is full.
// wg.Add is called here (before enqueue) to prevent a race with Drain.
func (p *Pool) Submit(task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		return true
	default:
		p.wg.Done()
		p.logger.Warn("worker pool queue full, task rejected")
		return false
	}
}

// StopAccepting prevents new tasks from being submitted.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain waits for all in-flight and queued tasks to complete, respecting the
// context deadline. It stops accepting new tasks first. It returns false if
// ctx expired before every task finished.
func (p *Pool) Drain(ctx context.Context) bool {
	p.StopAccepting()
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	drained := true
	select {
	case <-done:
		p.logger.Debug("worker pool drained")
	case <-ctx.Done():
		drained = false
		p.logger.Warn("worker pool drain timed out")
	}

	p.cancel()
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	return drained
}

func (p *Pool) worker() {
	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.runTask(task)
		case <-p.stopChan:
			for {
				select {
				case task, ok := <-p.queue:
					if !ok {
						return
					}
					p.runTask(task)
				default:
					return
				}
			}
		}
	}
}

// runTask executes a single task with panic recovery. wg.Done is called here
// to match the wg.Add in Submit.
func (p *Pool) runTask(task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("task panicked",
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()),
			)
			if p.onPanic != nil {
				p.onPanic(r)
			}
		}
	}()
	task(p.ctx)
}
