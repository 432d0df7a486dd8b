package processor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mediaqueue/pkg/async"
	"github.com/dmitrymomot/mediaqueue/pkg/logger"
)

// Processor runs submitted items through a handler, starting them only when
// the admission policy allows it.
//
// All queue state is owned by a single goroutine. Public methods and
// background work (policy calls, handler completions) hand it closures
// through a mailbox, so state transitions never interleave.
type Processor[T, R any] struct {
	handler Handler[T, R]
	policy  AdmissionPolicy[T]

	ctx              context.Context
	logger           *slog.Logger
	admissionTimeout time.Duration
	retryDelay       time.Duration

	mailbox   chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	queue      []QueuedItem[T]
	running    map[uuid.UUID]runningItem[T]
	promises   map[uuid.UUID]*async.Promise[R]
	seq        uint64
	epoch      uint64
	admitting  bool
	rerun      bool
	closed     bool
	retryTimer *time.Timer
	stats      Stats
}

type runningItem[T any] struct {
	item    QueuedItem[T]
	seq     uint64
	started time.Time
}

// New creates a processor and starts its owner goroutine.
// Call Close to release it.
func New[T, R any](handler Handler[T, R], policy AdmissionPolicy[T], opts ...Option) (*Processor[T, R], error) {
	if handler == nil {
		return nil, ErrHandlerNil
	}
	if policy == nil {
		return nil, ErrPolicyNil
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	p := &Processor[T, R]{
		handler:          handler,
		policy:           policy,
		ctx:              o.ctx,
		logger:           o.logger,
		admissionTimeout: o.admissionTimeout,
		retryDelay:       o.retryDelay,
		mailbox:          make(chan func()),
		quit:             make(chan struct{}),
		stopped:          make(chan struct{}),
		running:          make(map[uuid.UUID]runningItem[T]),
		promises:         make(map[uuid.UUID]*async.Promise[R]),
	}

	go p.loop()

	return p, nil
}

// Submit queues an item and returns the future of its result.
//
// The future resolves with the handler's result, rejects with the handler's
// error, or rejects with ErrCancelled if the processor is cleared first.
// After Close the future is already rejected with ErrClosed.
func (p *Processor[T, R]) Submit(item T) *async.Future[R] {
	promise := async.NewPromise[R]()
	queued := QueuedItem[T]{ID: uuid.New(), Item: item}

	ok := p.do(func() {
		if p.closed {
			promise.Reject(ErrClosed)
			return
		}

		p.queue = append(p.queue, queued)
		p.promises[queued.ID] = promise

		p.logger.Debug("item queued",
			logger.ItemID(queued.ID),
			logger.Queue(len(p.queue), len(p.running)))

		p.dispatch()
	})
	if !ok {
		promise.Reject(ErrClosed)
	}

	return promise.Future()
}

// Clear cancels every queued and running item.
// On return their futures are rejected with ErrCancelled and both counters are zero.
// Handlers already running are not interrupted; their results are discarded.
func (p *Processor[T, R]) Clear() {
	p.do(p.cancelAll)
}

// Queued returns the number of items waiting for admission.
func (p *Processor[T, R]) Queued() int {
	var n int
	p.do(func() { n = len(p.queue) })
	return n
}

// Executing returns the number of items whose handler is running.
func (p *Processor[T, R]) Executing() int {
	var n int
	p.do(func() { n = len(p.running) })
	return n
}

// Stats returns counters describing the processor.
func (p *Processor[T, R]) Stats() Stats {
	var s Stats
	p.do(func() {
		s = p.stats
		s.Queued = len(p.queue)
		s.Executing = len(p.running)
	})
	return s
}

// Close cancels all pending items and stops the owner goroutine.
// It is safe to call more than once.
func (p *Processor[T, R]) Close() error {
	p.closeOnce.Do(func() {
		p.do(func() {
			p.closed = true
			p.cancelAll()
		})
		close(p.quit)
		<-p.stopped
	})
	return nil
}

func (p *Processor[T, R]) loop() {
	defer close(p.stopped)

	for {
		select {
		case fn := <-p.mailbox:
			fn()
		case <-p.quit:
			return
		}
	}
}

// do runs fn on the owner goroutine and waits for it.
// Reports false if the processor has already stopped.
func (p *Processor[T, R]) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case p.mailbox <- func() {
		defer close(done)
		fn()
	}:
	case <-p.stopped:
		return false
	}
	<-done
	return true
}

// post hands fn to the owner goroutine without waiting for it to run.
func (p *Processor[T, R]) post(fn func()) {
	select {
	case p.mailbox <- fn:
	case <-p.stopped:
	}
}

// dispatch starts an admission cycle unless one is already in flight,
// in which case another cycle follows it.
func (p *Processor[T, R]) dispatch() {
	if p.closed || len(p.queue) == 0 {
		return
	}
	if p.admitting {
		p.rerun = true
		return
	}

	p.admitting = true
	p.stopRetry()

	go p.admit(p.epoch, p.runningSnapshot(), slices.Clone(p.queue))
}

func (p *Processor[T, R]) runningSnapshot() []QueuedItem[T] {
	entries := make([]runningItem[T], 0, len(p.running))
	for _, r := range p.running {
		entries = append(entries, r)
	}
	slices.SortFunc(entries, func(a, b runningItem[T]) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	items := make([]QueuedItem[T], len(entries))
	for i, e := range entries {
		items[i] = e.item
	}
	return items
}

// admit runs on its own goroutine so a slow policy never blocks Submit or Clear.
func (p *Processor[T, R]) admit(epoch uint64, running, queued []QueuedItem[T]) {
	admitted, err := p.callPolicy(running, queued)
	p.post(func() { p.applyAdmission(epoch, admitted, err) })
}

func (p *Processor[T, R]) callPolicy(running, queued []QueuedItem[T]) (admitted []QueuedItem[T], err error) {
	ctx := p.ctx
	if p.admissionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.admissionTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			admitted = nil
			err = fmt.Errorf("%w: %v", ErrPolicyPanic, r)
		}
	}()

	return p.policy.Admit(ctx, running, queued)
}

func (p *Processor[T, R]) applyAdmission(epoch uint64, admitted []QueuedItem[T], err error) {
	p.admitting = false
	rerun := p.rerun
	p.rerun = false

	switch {
	case p.closed:
		return
	case err != nil:
		// The queue is left as it was; the next trigger or the retry timer asks again.
		p.logger.Error("admission policy failed",
			logger.Queue(len(p.queue), len(p.running)),
			logger.Error(err))
		p.scheduleRetry()
	case epoch != p.epoch:
		p.logger.Debug("discarding admission decision made before clear")
	default:
		p.start(admitted)
	}

	if rerun {
		p.dispatch()
	}
}

// start moves admitted items from the queue to the running set and launches their handlers.
// Unknown and duplicate ids are skipped, so an item can never be admitted twice.
func (p *Processor[T, R]) start(admitted []QueuedItem[T]) {
	if len(admitted) == 0 {
		return
	}

	index := make(map[uuid.UUID]int, len(p.queue))
	for i, q := range p.queue {
		index[q.ID] = i
	}

	taken := make(map[uuid.UUID]struct{}, len(admitted))
	launch := make([]QueuedItem[T], 0, len(admitted))
	for _, a := range admitted {
		i, ok := index[a.ID]
		if !ok {
			continue
		}
		if _, dup := taken[a.ID]; dup {
			continue
		}
		taken[a.ID] = struct{}{}
		// The queue's copy is used, never the one returned by the policy.
		launch = append(launch, p.queue[i])
	}
	if len(launch) == 0 {
		return
	}

	p.queue = slices.DeleteFunc(p.queue, func(q QueuedItem[T]) bool {
		_, ok := taken[q.ID]
		return ok
	})

	now := time.Now()
	for _, item := range launch {
		p.seq++
		p.running[item.ID] = runningItem[T]{item: item, seq: p.seq, started: now}

		p.logger.Debug("item admitted",
			logger.ItemID(item.ID),
			logger.Queue(len(p.queue), len(p.running)))

		go p.run(item)
	}
}

func (p *Processor[T, R]) run(item QueuedItem[T]) {
	res, err := p.invoke(item)
	p.post(func() { p.complete(item.ID, res, err) })
}

func (p *Processor[T, R]) invoke(item QueuedItem[T]) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			res = zero
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	return p.handler(p.ctx, item.Item)
}

// complete settles a finished item and immediately looks for more work.
// Results of items cancelled in the meantime are dropped.
func (p *Processor[T, R]) complete(id uuid.UUID, res R, err error) {
	entry, ok := p.running[id]
	if !ok {
		return
	}
	delete(p.running, id)

	promise := p.promises[id]
	delete(p.promises, id)

	duration := time.Since(entry.started)
	if err != nil {
		p.stats.Failed++
		p.logger.Warn("item failed",
			logger.ItemID(id),
			logger.Duration(duration),
			logger.Error(err))
	} else {
		p.stats.Succeeded++
		p.logger.Debug("item completed",
			logger.ItemID(id),
			logger.Duration(duration))
	}

	promise.Settle(res, err)

	p.dispatch()
}

func (p *Processor[T, R]) cancelAll() {
	// Invalidates any admission decision still in flight.
	p.epoch++
	p.rerun = false
	p.stopRetry()

	if len(p.promises) == 0 {
		return
	}

	queued, running := len(p.queue), len(p.running)
	for id, promise := range p.promises {
		promise.Reject(ErrCancelled)
		delete(p.promises, id)
	}
	p.stats.Cancelled += uint64(queued + running)
	p.queue = nil
	clear(p.running)

	p.logger.Info("processor cleared",
		slog.Int("cancelled_queued", queued),
		slog.Int("cancelled_running", running))
}

func (p *Processor[T, R]) scheduleRetry() {
	if p.retryDelay <= 0 || p.retryTimer != nil {
		return
	}
	p.retryTimer = time.AfterFunc(p.retryDelay, func() {
		p.post(func() {
			p.retryTimer = nil
			p.dispatch()
		})
	})
}

func (p *Processor[T, R]) stopRetry() {
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
}
