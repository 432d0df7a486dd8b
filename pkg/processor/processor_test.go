package processor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mediaqueue/pkg/async"
	"github.com/dmitrymomot/mediaqueue/pkg/processor"
)

// limitPolicy admits items in queue order while fewer than n are running.
func limitPolicy[T any](n int) processor.AdmissionFunc[T] {
	return func(_ context.Context, running, queued []processor.QueuedItem[T]) ([]processor.QueuedItem[T], error) {
		free := n - len(running)
		if free <= 0 {
			return nil, nil
		}
		return queued[:min(free, len(queued))], nil
	}
}

// gatedHandler blocks every item until the test releases it.
type gatedHandler struct {
	started chan int
	mu      sync.Mutex
	gates   map[int]chan struct{}
}

func newGatedHandler() *gatedHandler {
	return &gatedHandler{
		started: make(chan int, 64),
		gates:   make(map[int]chan struct{}),
	}
}

func (g *gatedHandler) gate(n int) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[n]
	if !ok {
		ch = make(chan struct{})
		g.gates[n] = ch
	}
	return ch
}

func (g *gatedHandler) release(n int) { close(g.gate(n)) }

func (g *gatedHandler) handle(_ context.Context, n int) (string, error) {
	g.started <- n
	<-g.gate(n)
	return fmt.Sprintf("item-%d", n), nil
}

func expectStarted(t *testing.T, started <-chan int, count int) []int {
	t.Helper()
	got := make([]int, 0, count)
	for range count {
		select {
		case n := <-started:
			got = append(got, n)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for start, got %v so far", got)
		}
	}
	return got
}

func expectNoStart(t *testing.T, started <-chan int) {
	t.Helper()
	select {
	case n := <-started:
		t.Fatalf("unexpected start of item %d", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func newProcessor[T, R any](t *testing.T, h processor.Handler[T, R], p processor.AdmissionPolicy[T], opts ...processor.Option) *processor.Processor[T, R] {
	t.Helper()
	proc, err := processor.New(h, p, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = proc.Close() })
	return proc
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil handler", func(t *testing.T) {
		t.Parallel()

		p, err := processor.New[int, int](nil, limitPolicy[int](1))
		assert.ErrorIs(t, err, processor.ErrHandlerNil)
		assert.Nil(t, p)
	})

	t.Run("nil policy", func(t *testing.T) {
		t.Parallel()

		p, err := processor.New(func(context.Context, int) (int, error) { return 0, nil }, nil)
		assert.ErrorIs(t, err, processor.ErrPolicyNil)
		assert.Nil(t, p)
	})
}

func TestProcessor_SubmitResolves(t *testing.T) {
	t.Parallel()

	p := newProcessor(t, func(_ context.Context, s string) (int, error) {
		return len(s), nil
	}, limitPolicy[string](2))

	futures := []*async.Future[int]{p.Submit("a"), p.Submit("bb"), p.Submit("ccc")}
	results, err := async.WaitAll(futures...)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, results)

	assert.Equal(t, 0, p.Queued())
	assert.Equal(t, 0, p.Executing())
	assert.Equal(t, uint64(3), p.Stats().Succeeded)
}

func TestProcessor_FailureIsolation(t *testing.T) {
	t.Parallel()

	errB := errors.New("item b failed")
	p := newProcessor(t, func(_ context.Context, s string) (string, error) {
		if s == "b" {
			return "", errB
		}
		return s + "!", nil
	}, limitPolicy[string](3))

	a, b, c := p.Submit("a"), p.Submit("b"), p.Submit("c")

	res, err := a.AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a!", res)

	_, err = b.AwaitWithTimeout(time.Second)
	assert.ErrorIs(t, err, errB)
	assert.NotErrorIs(t, err, processor.ErrCancelled)

	res, err = c.AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "c!", res)

	// The queue keeps working after a failure.
	res, err = p.Submit("d").AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "d!", res)

	stats := p.Stats()
	assert.Equal(t, uint64(3), stats.Succeeded)
	assert.Equal(t, uint64(1), stats.Failed)
}

func TestProcessor_HandlerPanic(t *testing.T) {
	t.Parallel()

	p := newProcessor(t, func(_ context.Context, n int) (int, error) {
		if n == 0 {
			panic("boom")
		}
		return n, nil
	}, limitPolicy[int](1))

	_, err := p.Submit(0).AwaitWithTimeout(time.Second)
	assert.ErrorIs(t, err, processor.ErrHandlerPanic)

	res, err := p.Submit(5).AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, res)
}

func TestProcessor_ConcurrencyCapRespected(t *testing.T) {
	t.Parallel()

	const limit = 3
	var current, peak atomic.Int32

	handler := func(_ context.Context, n int) (int, error) {
		c := current.Add(1)
		for {
			old := peak.Load()
			if c <= old || peak.CompareAndSwap(old, c) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		current.Add(-1)
		return n, nil
	}

	var policyViolation atomic.Bool
	policy := processor.AdmissionFunc[int](func(ctx context.Context, running, queued []processor.QueuedItem[int]) ([]processor.QueuedItem[int], error) {
		if len(running) > limit {
			policyViolation.Store(true)
		}
		return limitPolicy[int](limit)(ctx, running, queued)
	})

	p := newProcessor(t, handler, policy)

	futures := make([]*async.Future[int], 30)
	for i := range futures {
		futures[i] = p.Submit(i)
		assert.LessOrEqual(t, p.Executing(), limit)
	}

	_, err := async.WaitAll(futures...)
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.False(t, policyViolation.Load())
}

func TestProcessor_ReactiveRefill(t *testing.T) {
	t.Parallel()

	g := newGatedHandler()
	p := newProcessor(t, g.handle, limitPolicy[int](2))

	futures := make([]*async.Future[string], 4)
	for i := range futures {
		futures[i] = p.Submit(i)
	}

	assert.ElementsMatch(t, []int{0, 1}, expectStarted(t, g.started, 2))
	expectNoStart(t, g.started)
	assert.Equal(t, 2, p.Queued())
	assert.Equal(t, 2, p.Executing())

	// Finishing the first item frees a slot; the third starts without another Submit.
	g.release(0)
	assert.Equal(t, []int{2}, expectStarted(t, g.started, 1))
	expectNoStart(t, g.started)

	g.release(1)
	assert.Equal(t, []int{3}, expectStarted(t, g.started, 1))

	g.release(2)
	g.release(3)

	results, err := async.WaitAll(futures...)
	require.NoError(t, err)
	assert.Equal(t, []string{"item-0", "item-1", "item-2", "item-3"}, results)
}

func TestProcessor_Clear(t *testing.T) {
	t.Parallel()

	g := newGatedHandler()
	p := newProcessor(t, g.handle, limitPolicy[int](2))

	futures := make([]*async.Future[string], 5)
	for i := range futures {
		futures[i] = p.Submit(i)
	}
	expectStarted(t, g.started, 2)

	p.Clear()

	assert.Equal(t, 0, p.Queued())
	assert.Equal(t, 0, p.Executing())
	for i, f := range futures {
		_, err := f.AwaitWithTimeout(time.Second)
		assert.ErrorIs(t, err, processor.ErrCancelled, "item %d", i)
	}

	// Handlers of cancelled items finish later; their results must not surface.
	g.release(0)
	g.release(1)
	time.Sleep(20 * time.Millisecond)
	for _, f := range futures[:2] {
		_, err := f.Await()
		assert.ErrorIs(t, err, processor.ErrCancelled)
	}
	expectNoStart(t, g.started)

	stats := p.Stats()
	assert.Equal(t, uint64(5), stats.Cancelled)
	assert.Zero(t, stats.Succeeded)

	// The processor is still usable after a clear.
	g.release(7)
	res, err := p.Submit(7).AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "item-7", res)
}

func TestProcessor_ClearDropsInFlightAdmission(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var calls atomic.Int32
	policy := processor.AdmissionFunc[int](func(_ context.Context, _, queued []processor.QueuedItem[int]) ([]processor.QueuedItem[int], error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-unblock
		}
		return queued, nil
	})

	g := newGatedHandler()
	p := newProcessor(t, g.handle, policy)

	stale := []*async.Future[string]{p.Submit(1), p.Submit(2)}
	<-entered

	p.Clear()
	fresh := p.Submit(9)
	close(unblock)

	assert.Equal(t, []int{9}, expectStarted(t, g.started, 1))
	expectNoStart(t, g.started)

	for _, f := range stale {
		_, err := f.AwaitWithTimeout(time.Second)
		assert.ErrorIs(t, err, processor.ErrCancelled)
	}

	g.release(9)
	res, err := fresh.AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "item-9", res)
}

func TestProcessor_AtMostOnceAdmission(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight atomic.Int32
	policy := processor.AdmissionFunc[int](func(_ context.Context, running, queued []processor.QueuedItem[int]) ([]processor.QueuedItem[int], error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(time.Millisecond)

		free := 4 - len(running)
		if free <= 0 {
			return nil, nil
		}
		picked := queued[:min(free, len(queued))]
		// Duplicates and foreign ids must be ignored.
		out := append([]processor.QueuedItem[int]{}, picked...)
		out = append(out, picked...)
		out = append(out, processor.QueuedItem[int]{Item: -1})
		return out, nil
	})

	var mu sync.Mutex
	calls := make(map[int]int)
	p := newProcessor(t, func(_ context.Context, n int) (int, error) {
		mu.Lock()
		calls[n]++
		mu.Unlock()
		time.Sleep(time.Millisecond)
		return n, nil
	}, policy)

	const total = 50
	futures := make([]*async.Future[int], total)
	var wg sync.WaitGroup
	for i := range total {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			futures[n] = p.Submit(n)
		}(i)
	}
	wg.Wait()

	for i, f := range futures {
		res, err := f.AwaitWithTimeout(5 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, i, res)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, calls, total)
	for n, c := range calls {
		assert.Equal(t, 1, c, "item %d handled %d times", n, c)
	}
	assert.Equal(t, int32(1), maxInFlight.Load(), "admission decisions must not overlap")
}

func TestProcessor_PolicyFailure(t *testing.T) {
	t.Parallel()

	t.Run("error is retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		policy := processor.AdmissionFunc[int](func(ctx context.Context, running, queued []processor.QueuedItem[int]) ([]processor.QueuedItem[int], error) {
			if calls.Add(1) <= 2 {
				return nil, errors.New("metadata unavailable")
			}
			return limitPolicy[int](1)(ctx, running, queued)
		})

		p := newProcessor(t, func(_ context.Context, n int) (int, error) { return n * 2, nil }, policy,
			processor.WithPolicyRetryDelay(10*time.Millisecond))

		res, err := p.Submit(21).AwaitWithTimeout(2 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, 42, res)
		assert.GreaterOrEqual(t, calls.Load(), int32(3))
	})

	t.Run("panic is recovered", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		policy := processor.AdmissionFunc[int](func(ctx context.Context, running, queued []processor.QueuedItem[int]) ([]processor.QueuedItem[int], error) {
			if calls.Add(1) == 1 {
				panic("policy bug")
			}
			return limitPolicy[int](1)(ctx, running, queued)
		})

		p := newProcessor(t, func(_ context.Context, n int) (int, error) { return n, nil }, policy,
			processor.WithPolicyRetryDelay(10*time.Millisecond))

		res, err := p.Submit(1).AwaitWithTimeout(2 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, 1, res)
	})

	t.Run("timeout reaches the policy", func(t *testing.T) {
		t.Parallel()

		var sawDeadline atomic.Bool
		policy := processor.AdmissionFunc[int](func(ctx context.Context, running, queued []processor.QueuedItem[int]) ([]processor.QueuedItem[int], error) {
			if _, ok := ctx.Deadline(); ok {
				sawDeadline.Store(true)
			}
			return limitPolicy[int](1)(ctx, running, queued)
		})

		p := newProcessor(t, func(_ context.Context, n int) (int, error) { return n, nil }, policy,
			processor.WithAdmissionTimeout(time.Second))

		_, err := p.Submit(1).AwaitWithTimeout(time.Second)
		require.NoError(t, err)
		assert.True(t, sawDeadline.Load())
	})
}

func TestProcessor_PolicyGetsSnapshots(t *testing.T) {
	t.Parallel()

	policy := processor.AdmissionFunc[int](func(_ context.Context, running, queued []processor.QueuedItem[int]) ([]processor.QueuedItem[int], error) {
		if len(running) > 0 || len(queued) == 0 {
			return nil, nil
		}
		admitted := []processor.QueuedItem[int]{queued[0]}
		for i := range queued {
			queued[i].Item = -100
		}
		admitted[0].Item = -1
		return admitted, nil
	})

	var seen []int
	var mu sync.Mutex
	p := newProcessor(t, func(_ context.Context, n int) (int, error) {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
		return n, nil
	}, policy)

	f1, f2 := p.Submit(1), p.Submit(2)
	_, err := async.WaitAll(f1, f2)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, seen)
}

func TestProcessor_Close(t *testing.T) {
	t.Parallel()

	g := newGatedHandler()
	p, err := processor.New(g.handle, limitPolicy[int](1))
	require.NoError(t, err)

	running := p.Submit(1)
	queued := p.Submit(2)
	expectStarted(t, g.started, 1)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = running.AwaitWithTimeout(time.Second)
	assert.ErrorIs(t, err, processor.ErrCancelled)
	_, err = queued.AwaitWithTimeout(time.Second)
	assert.ErrorIs(t, err, processor.ErrCancelled)

	_, err = p.Submit(3).AwaitWithTimeout(time.Second)
	assert.ErrorIs(t, err, processor.ErrClosed)
	assert.Equal(t, 0, p.Queued())
	assert.Equal(t, 0, p.Executing())

	// A handler finishing after Close must not block or panic.
	g.release(1)
}
