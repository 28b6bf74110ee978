// Package dispatch provides the single-threaded presentation context that owns playback
// state, and the frame clock that drives it.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher schedules fn on the presentation context. Post never blocks.
type Dispatcher interface {
	Post(fn func())
}

// Func adapts a function to [Dispatcher].
type Func func(fn func())

func (f Func) Post(fn func()) { f(fn) }

// Immediate runs posted work on the caller's goroutine. Only safe when every caller is
// already on the presentation context, as in single-goroutine tests.
var Immediate Dispatcher = Func(func(fn func()) { fn() })

// Loop is an unbounded FIFO of posted functions drained by one goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	signal chan struct{}
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{
		queue:  make([]func(), 0, 32),
		signal: make(chan struct{}, 1),
	}
}

// Post implements [Dispatcher]. Work posted after Close is dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.queue = append(l.queue, fn)

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Drain runs everything queued so far on the calling goroutine and returns how many
// functions ran. Work posted by those functions runs in the same call.
func (l *Loop) Drain() int {
	ran := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return ran
		}
		batch := l.queue
		l.queue = make([]func(), 0, cap(batch))
		l.mu.Unlock()

		for i, fn := range batch {
			fn()
			batch[i] = nil
			ran++
		}
	}
}

// Run makes the calling goroutine the presentation context until ctx is done or the
// loop is closed and drained.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-l.signal:
			if !ok {
				l.Drain()
				return nil
			}
		}
	}
}

// Len is the number of queued functions.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops accepting work and wakes Run so it can exit after draining.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

// Every posts fn to d once per interval with the time elapsed since the previous tick,
// until ctx is done. A tick is skipped while the previous one is still queued, so a busy
// presentation context never accumulates a backlog.
func Every(ctx context.Context, d Dispatcher, interval time.Duration, fn func(dt time.Duration)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var pending atomic.Bool
		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if !pending.CompareAndSwap(false, true) {
					continue
				}
				dt := now.Sub(last)
				last = now
				d.Post(func() {
					pending.Store(false)
					fn(dt)
				})
			}
		}
	}()
}
