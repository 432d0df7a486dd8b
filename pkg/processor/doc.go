// Package processor provides a generic work queue whose concurrency is decided
// by a pluggable admission policy.
//
// A Processor accepts items with Submit, keeps them queued until its
// AdmissionPolicy lets them start, runs them through a Handler, and settles a
// per-item async.Future with the outcome. How many items run at once, and
// which ones, is entirely up to the policy: a fixed limit, a byte budget, or a
// rule that keeps large videos waiting behind small images.
//
// # Architecture
//
//  1. Every Processor owns one goroutine that holds the queue, the running set
//     and the pending promises. All state changes run there, one at a time.
//  2. An admission cycle hands the policy copies of the running and queued
//     items. Only one cycle is in flight at a time; triggers that arrive while
//     it runs schedule one more cycle afterwards.
//  3. Admitted items leave the queue and start immediately. Each completion
//     settles its future and starts a new cycle, so freed capacity is reused
//     without waiting for another Submit.
//  4. Clear rejects every queued and running item with ErrCancelled. Running
//     handlers are not interrupted; whatever they return later is dropped.
//
// # Usage
//
//	limit := processor.AdmissionFunc[string](func(_ context.Context, running, queued []processor.QueuedItem[string]) ([]processor.QueuedItem[string], error) {
//	    free := 2 - len(running)
//	    if free <= 0 {
//	        return nil, nil
//	    }
//	    return queued[:min(free, len(queued))], nil
//	})
//
//	p, err := processor.New(func(ctx context.Context, name string) (int, error) {
//	    return len(name), nil
//	}, limit)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	n, err := p.Submit("hello").Await()
//
// # Error Handling
//
// Handler errors and panics only affect the item being processed. A failing
// admission policy is logged and asked again on the next Submit, the next
// completion, or after the retry delay (see WithPolicyRetryDelay); the queue
// keeps its items. Use errors.Is with ErrCancelled to tell abandoned items
// from failed ones.
package processor
