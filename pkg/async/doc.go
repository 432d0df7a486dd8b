// Package async provides generic single-shot results for asynchronous work.
//
// A Future is the read side of a result that will be available later. It is
// settled exactly once, with a value or with an error, and any number of
// goroutines may wait on it with Await, AwaitContext or AwaitWithTimeout, or
// poll it with IsComplete.
//
// A Promise is the write side. Producers call Resolve, Reject or Settle; only
// the first call has an effect, which makes a Promise safe to hand to racing
// completions (a finished handler and a cancellation, for example).
//
// Async runs a function on its own goroutine and returns its Future. WaitAll,
// WaitAllSettled and WaitAny coordinate several futures.
//
// # Usage
//
//	p := async.NewPromise[string]()
//	go func() {
//	    p.Resolve("done")
//	}()
//
//	res, err := p.Future().Await()
//
// # Error Handling
//
// Futures carry whatever error the producer rejected them with. The package
// itself only returns ErrTimeout from AwaitWithTimeout, ErrNoFutures from
// WaitAny, and substitutes ErrNilError when a promise is rejected with nil.
package async
