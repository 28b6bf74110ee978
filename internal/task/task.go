package task

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle state of a [Task].
type State int

const (
	Pending State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ListenerID identifies a registered listener so it can be detached.
type ListenerID uint64

type successListener[T any] struct {
	id ListenerID
	fn func(T)
}

type failureListener struct {
	id ListenerID
	fn func(error)
}

// Task is a handle for an asynchronous result that settles exactly once.
//
// Listeners added while pending are called once, in registration order, when the task
// settles. Listeners added after settling are called synchronously before the Add call
// returns. Callbacks run outside the task's lock and on whichever goroutine settled the
// task; callers that need a particular context must redispatch.
type Task[T any] struct {
	mu      sync.Mutex
	state   State
	value   T
	err     error
	nextID  ListenerID
	success []successListener[T]
	failure []failureListener
	done    chan struct{}
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Run schedules fn on exec and returns a task that settles with its result.
// A nil exec runs fn on a new goroutine. A panic in fn fails the task.
func Run[T any](ctx context.Context, exec Executor, fn func(context.Context) (T, error)) *Task[T] {
	t := newTask[T]()
	work := func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				t.settle(zero, fmt.Errorf("task panicked: %v", r))
			}
		}()
		if err := ctx.Err(); err != nil {
			var zero T
			t.settle(zero, err)
			return
		}
		v, err := fn(ctx)
		t.settle(v, err)
	}

	if exec == nil {
		go work()
	} else {
		exec.Go(work)
	}
	return t
}

// Completed returns a task that already succeeded with v.
func Completed[T any](v T) *Task[T] {
	t := newTask[T]()
	t.settle(v, nil)
	return t
}

// Errored returns a task that already failed with err.
func Errored[T any](err error) *Task[T] {
	t := newTask[T]()
	var zero T
	t.settle(zero, err)
	return t
}

// AddListener registers fn for the success value.
func (t *Task[T]) AddListener(fn func(T)) ListenerID {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	switch t.state {
	case Pending:
		t.success = append(t.success, successListener[T]{id: id, fn: fn})
		t.mu.Unlock()
	case Succeeded:
		v := t.value
		t.mu.Unlock()
		fn(v)
	default:
		t.mu.Unlock()
	}
	return id
}

// AddFailureListener registers fn for the failure error.
func (t *Task[T]) AddFailureListener(fn func(error)) ListenerID {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	switch t.state {
	case Pending:
		t.failure = append(t.failure, failureListener{id: id, fn: fn})
		t.mu.Unlock()
	case Failed:
		err := t.err
		t.mu.Unlock()
		fn(err)
	default:
		t.mu.Unlock()
	}
	return id
}

// RemoveListener detaches a success listener. It reports whether the listener was still pending.
func (t *Task[T]) RemoveListener(id ListenerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, l := range t.success {
		if l.id == id {
			t.success = append(t.success[:i], t.success[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveFailureListener detaches a failure listener. It reports whether the listener was still pending.
func (t *Task[T]) RemoveFailureListener(id ListenerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, l := range t.failure {
		if l.id == id {
			t.failure = append(t.failure[:i], t.failure[i+1:]...)
			return true
		}
	}
	return false
}

// State returns the current state.
func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result returns the settled value and error; ok is false while pending.
func (t *Task[T]) Result() (v T, err error, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.err, t.state != Pending
}

// Done is closed once the task settles.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		v, err, _ := t.Result()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// settle moves the task to its terminal state and drains the matching listeners.
// Only the first call has any effect.
func (t *Task[T]) settle(v T, err error) {
	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return
	}

	var success []successListener[T]
	var failure []failureListener
	if err != nil {
		t.state, t.err = Failed, err
		failure = t.failure
	} else {
		t.state, t.value = Succeeded, v
		success = t.success
	}
	t.success, t.failure = nil, nil
	close(t.done)
	t.mu.Unlock()

	for _, l := range success {
		l.fn(v)
	}
	for _, l := range failure {
		l.fn(err)
	}
}
