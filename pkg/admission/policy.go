package admission

import (
	"context"

	"github.com/dmitrymomot/mediaqueue/pkg/processor"
)

type item[T any] = processor.QueuedItem[T]

// Limit admits items in queue order while fewer than n are running.
// n below 1 is treated as 1.
func Limit[T any](n int) processor.AdmissionFunc[T] {
	n = max(n, 1)
	return func(_ context.Context, running, queued []item[T]) ([]item[T], error) {
		free := n - len(running)
		if free <= 0 || len(queued) == 0 {
			return nil, nil
		}
		return queued[:min(free, len(queued))], nil
	}
}

// Weighted admits items while the summed weight of running and admitted items stays within budget.
// It looks past items that do not fit, so light items can overtake heavy ones.
// When nothing is running the first queued item is admitted even if it exceeds the budget on its own.
func Weighted[T any](budget int64, weight func(T) int64) processor.AdmissionFunc[T] {
	return func(_ context.Context, running, queued []item[T]) ([]item[T], error) {
		var used int64
		for _, r := range running {
			used += weight(r.Item)
		}

		var out []item[T]
		for _, q := range queued {
			w := weight(q.Item)
			if len(running) == 0 && len(out) == 0 {
				out = append(out, q)
				used += w
				continue
			}
			if used+w <= budget {
				out = append(out, q)
				used += w
			}
		}
		return out, nil
	}
}

// Deprioritize keeps deferred items waiting while anything else can run.
//
// Preferred items fill up to limit slots in queue order. A deferred item
// starts only when nothing is running and no preferred item is waiting, and
// then it starts alone.
func Deprioritize[T any](limit int, deferred func(T) bool) processor.AdmissionFunc[T] {
	limit = max(limit, 1)
	return func(_ context.Context, running, queued []item[T]) ([]item[T], error) {
		free := limit - len(running)
		if free <= 0 {
			return nil, nil
		}

		var (
			out   []item[T]
			first *item[T]
		)
		for i := range queued {
			if deferred(queued[i].Item) {
				if first == nil {
					first = &queued[i]
				}
				continue
			}
			if len(out) < free {
				out = append(out, queued[i])
			}
		}

		if len(out) > 0 {
			return out, nil
		}
		if len(running) == 0 && first != nil {
			return []item[T]{*first}, nil
		}
		return nil, nil
	}
}

// Chain narrows the admitted set through each policy in turn.
// Every policy sees the same running set and the previous policy's output as its queue.
func Chain[T any](policies ...processor.AdmissionPolicy[T]) processor.AdmissionFunc[T] {
	return func(ctx context.Context, running, queued []item[T]) ([]item[T], error) {
		out := queued
		for _, p := range policies {
			if len(out) == 0 {
				return nil, nil
			}
			var err error
			out, err = p.Admit(ctx, running, out)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}
