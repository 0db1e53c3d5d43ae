package rpc

import (
	"context"
)

// NewFuture create a pending future
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settle the future with a value, only the first settlement counts
func (f *Future) Resolve(value interface{}) {
	f.settle(value, nil)
}

// Reject settle the future with an error, only the first settlement counts
func (f *Future) Reject(err error) {
	f.settle(nil, err)
}

// Done closed once the future is settled
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result the settled value, ok is false while pending
func (f *Future) Result() (value interface{}, ok bool, err error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		return nil, false, nil
	}
}

// Wait block the calling goroutine until the future is settled or the context is done
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then run fn once the future is settled, on the goroutine settling it (or immediately if already settled)
func (f *Future) Then(fn func(value interface{}, err error)) {
	f.mutex.Lock()
	select {
	case <-f.done:
		f.mutex.Unlock()
		fn(f.value, f.err)
		return
	default:
	}
	f.thens = append(f.thens, fn)
	f.mutex.Unlock()
}

func (f *Future) settle(value interface{}, err error) {
	f.mutex.Lock()
	select {
	case <-f.done:
		f.mutex.Unlock()
		return
	default:
	}
	f.value = value
	f.err = err
	close(f.done)
	thens := f.thens
	f.thens = nil
	f.mutex.Unlock()

	for _, fn := range thens {
		fn(value, err)
	}
}
