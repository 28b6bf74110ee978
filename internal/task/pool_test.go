package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	time1s = time.Second
	tick   = 5 * time.Millisecond
)

func TestPool(t *testing.T) {
	t.Run("runs submitted work", func(t *testing.T) {
		p := NewPool(3, nil)

		var ran atomic.Int32
		for range 100 {
			p.Go(func() { ran.Add(1) })
		}
		p.Close()

		assert.Equal(t, int32(100), ran.Load())
	})

	t.Run("survives panics", func(t *testing.T) {
		p := NewPool(1, nil)
		defer p.Close()

		p.Go(func() { panic("worker boom") })
		done := make(chan struct{})
		p.Go(func() { close(done) })

		select {
		case <-done:
		case <-time.After(time1s):
			t.Fatal("worker did not recover")
		}
	})

	t.Run("work after close still runs", func(t *testing.T) {
		p := NewPool(2, nil)
		p.Close()
		p.Close()

		done := make(chan struct{})
		p.Go(func() { close(done) })
		select {
		case <-done:
		case <-time.After(time1s):
			t.Fatal("work submitted after close was dropped")
		}
	})

	t.Run("drives tasks", func(t *testing.T) {
		p := NewPool(2, nil)
		defer p.Close()

		tk := Run(context.Background(), p, func(context.Context) (string, error) { return "ok", nil })
		v, err := tk.Wait(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "ok", v)
	})
}
