package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gate returns a task whose work blocks until release is called.
func gate[T any](v T, err error) (*Task[T], func()) {
	ch := make(chan struct{})
	t := Run(context.Background(), nil, func(context.Context) (T, error) {
		<-ch
		return v, err
	})
	return t, func() { close(ch) }
}

func waitDone[T any](t *testing.T, tk *Task[T]) {
	t.Helper()
	select {
	case <-tk.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not settle")
	}
}

func TestTaskListeners(t *testing.T) {
	t.Run("listeners fire once in registration order", func(t *testing.T) {
		tk, release := gate(42, nil)

		var mu sync.Mutex
		var order []int
		for i := range 3 {
			tk.AddListener(func(v int) {
				mu.Lock()
				defer mu.Unlock()
				assert.Equal(t, 42, v)
				order = append(order, i)
			})
		}
		failed := false
		tk.AddFailureListener(func(error) { failed = true })

		release()
		waitDone(t, tk)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []int{0, 1, 2}, order)
		assert.False(t, failed)
		assert.Equal(t, Succeeded, tk.State())
	})

	t.Run("late listener is called before AddListener returns", func(t *testing.T) {
		tk := Completed("done")

		called := false
		tk.AddListener(func(v string) {
			called = true
			assert.Equal(t, "done", v)
		})
		assert.True(t, called)

		tk.AddFailureListener(func(error) { t.Error("failure listener on succeeded task") })
	})

	t.Run("late failure listener", func(t *testing.T) {
		boom := errors.New("boom")
		tk := Errored[int](boom)

		var got error
		tk.AddFailureListener(func(err error) { got = err })
		assert.ErrorIs(t, got, boom)
	})

	t.Run("removed listener is never called", func(t *testing.T) {
		tk, release := gate(1, nil)

		id := tk.AddListener(func(int) { t.Error("removed listener called") })
		fid := tk.AddFailureListener(func(error) { t.Error("removed failure listener called") })
		kept := make(chan int, 1)
		tk.AddListener(func(v int) { kept <- v })

		assert.True(t, tk.RemoveListener(id))
		assert.True(t, tk.RemoveFailureListener(fid))
		assert.False(t, tk.RemoveListener(id), "second removal is a no-op")

		release()
		waitDone(t, tk)
		assert.Equal(t, 1, <-kept)
	})

	t.Run("failure reaches only failure listeners", func(t *testing.T) {
		boom := errors.New("boom")
		tk, release := gate(0, boom)

		var failures atomic.Int32
		tk.AddListener(func(int) { t.Error("success listener called on failure") })
		tk.AddFailureListener(func(err error) {
			assert.ErrorIs(t, err, boom)
			failures.Add(1)
		})

		release()
		_, err := tk.Wait(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(1), failures.Load())
	})

	t.Run("concurrent registration during settlement notifies exactly once", func(t *testing.T) {
		for range 50 {
			tk, release := gate("v", nil)

			var calls atomic.Int32
			var wg sync.WaitGroup
			for range 20 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					tk.AddListener(func(string) { calls.Add(1) })
				}()
			}
			release()
			wg.Wait()
			waitDone(t, tk)

			assert.Equal(t, int32(20), calls.Load())
		}
	})

	t.Run("panic fails the task", func(t *testing.T) {
		tk := Run(context.Background(), Inline, func(context.Context) (int, error) {
			panic("kaboom")
		})
		_, err, ok := tk.Result()
		require.True(t, ok)
		assert.ErrorContains(t, err, "kaboom")
	})

	t.Run("cancelled context fails before running", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ran := false
		tk := Run(ctx, Inline, func(context.Context) (int, error) {
			ran = true
			return 1, nil
		})
		assert.False(t, ran)
		assert.Equal(t, Failed, tk.State())
	})

	t.Run("Wait honours context", func(t *testing.T) {
		tk, release := gate(1, nil)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := tk.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(9).String())
}
