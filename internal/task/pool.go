package task

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/samse/lottiekit/internal/shared"
)

// Executor runs functions off the caller's goroutine.
type Executor interface {
	Go(fn func())
}

// ExecutorFunc adapts a function to [Executor].
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Go(fn func()) { f(fn) }

// Inline runs work on the calling goroutine. Intended for tests.
var Inline Executor = ExecutorFunc(func(fn func()) { fn() })

// Pool is a fixed set of background workers fed from a queue.
//
// Go never blocks: work beyond the queue capacity runs on a fresh goroutine, and work
// submitted after Close does too.
type Pool struct {
	jobs   chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *log.Logger
}

// NewPool starts workers goroutines. workers <= 0 means one.
func NewPool(workers int, logger *log.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}

	p := &Pool{
		jobs:   make(chan func(), workers*16),
		logger: shared.WithLogger(logger, "component", "pool"),
	}
	for i := range workers {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker recovered from panic", "worker", id, "panic", r)
		}
	}()
	job()
}

// Go implements [Executor].
func (p *Pool) Go(fn func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		go p.run(-1, fn)
		return
	}

	select {
	case p.jobs <- fn:
	default:
		p.logger.Debug("queue full, spilling to goroutine")
		go p.run(-1, fn)
	}
}

// Close stops accepting queued work and waits for the workers to drain the queue.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
