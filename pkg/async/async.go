package async

import (
	"context"
	"sync/atomic"
	"time"
)

// Future represents the result of an asynchronous computation.
// A Future is settled exactly once, either with a value or with an error.
type Future[U any] struct {
	result  U
	err     error
	settled atomic.Bool
	done    chan struct{}
}

func newFuture[U any]() *Future[U] {
	return &Future[U]{done: make(chan struct{})}
}

// settle stores the outcome and wakes every waiter.
// Only the first call wins; later calls report false and change nothing.
func (f *Future[U]) settle(res U, err error) bool {
	if !f.settled.CompareAndSwap(false, true) {
		return false
	}
	f.result = res
	f.err = err
	close(f.done)
	return true
}

// Await waits for the asynchronous function to complete and returns its result and error.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext waits for completion or for ctx to be done, whichever happens first.
// Giving up on the wait does not affect the future itself.
func (f *Future[U]) AwaitContext(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout waits for the asynchronous function to complete with a timeout.
// Returns the result and error if the function completes before the timeout.
// If the timeout occurs before completion, returns a timeout error.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.result, f.err
	case <-timer.C:
		var zero U
		return zero, ErrTimeout
	}
}

// Done returns a channel that is closed once the future is settled.
func (f *Future[U]) Done() <-chan struct{} {
	return f.done
}

// IsComplete checks if the asynchronous function is complete without blocking.
// Returns true if the function has completed, false otherwise.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Promise is the write side of a Future.
// It is handed to whoever produces the value, while consumers only see the Future.
type Promise[U any] struct {
	future *Future[U]
}

// NewPromise creates an unsettled promise.
func NewPromise[U any]() *Promise[U] {
	return &Promise[U]{future: newFuture[U]()}
}

// Future returns the read side of the promise.
func (p *Promise[U]) Future() *Future[U] {
	return p.future
}

// Resolve settles the promise with a value.
// Returns false if the promise was already settled.
func (p *Promise[U]) Resolve(res U) bool {
	return p.future.settle(res, nil)
}

// Reject settles the promise with an error.
// A nil error is replaced with ErrNilError so that a rejection is never mistaken for success.
// Returns false if the promise was already settled.
func (p *Promise[U]) Reject(err error) bool {
	if err == nil {
		err = ErrNilError
	}
	var zero U
	return p.future.settle(zero, err)
}

// Settle resolves or rejects depending on err.
func (p *Promise[U]) Settle(res U, err error) bool {
	if err != nil {
		return p.Reject(err)
	}
	return p.Resolve(res)
}

// Resolved returns an already completed future.
func Resolved[U any](res U) *Future[U] {
	f := newFuture[U]()
	f.settle(res, nil)
	return f
}

// Rejected returns a future already failed with err.
func Rejected[U any](err error) *Future[U] {
	p := NewPromise[U]()
	p.Reject(err)
	return p.future
}

// Async executes a function asynchronously and returns a Future.
// The function accepts a context.Context and a parameter of any type T, and returns (U, error).
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	p := NewPromise[U]()

	go func() {
		// Early exit prevents goroutine leak when context is pre-canceled
		if err := ctx.Err(); err != nil {
			p.Reject(err)
			return
		}

		p.Settle(fn(ctx, param))
	}()

	return p.future
}

// WaitAll waits for all futures to complete and returns a slice of their results and an error
// if any of the futures returned an error.
func WaitAll[U any](futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))

	for i, future := range futures {
		result, err := future.Await()
		results[i] = result
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// Outcome is the settled state of a single future.
type Outcome[U any] struct {
	Value U
	Err   error
}

// WaitAllSettled waits for every future regardless of failures.
// Outcomes are returned in the order of the futures.
func WaitAllSettled[U any](futures ...*Future[U]) []Outcome[U] {
	out := make([]Outcome[U], len(futures))
	for i, future := range futures {
		out[i].Value, out[i].Err = future.Await()
	}
	return out
}

// WaitAny waits for any of the futures to complete and returns the index of the completed future,
// its result, and any error it might have returned.
func WaitAny[U any](futures ...*Future[U]) (int, U, error) {
	if len(futures) == 0 {
		var zero U
		return -1, zero, ErrNoFutures
	}

	type first struct {
		index  int
		result U
		err    error
	}

	// Buffered for every future so late finishers never block.
	done := make(chan first, len(futures))
	for i, future := range futures {
		go func(index int, f *Future[U]) {
			result, err := f.Await()
			done <- first{index, result, err}
		}(i, future)
	}

	res := <-done
	return res.index, res.result, res.err
}
