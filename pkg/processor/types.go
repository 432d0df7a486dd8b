package processor

import (
	"context"

	"github.com/google/uuid"
)

// QueuedItem wraps a submitted payload with its correlation id.
type QueuedItem[T any] struct {
	ID   uuid.UUID
	Item T
}

// Handler processes a single item.
// The context is the processor's base context; clearing the processor does not cancel it.
type Handler[T, R any] func(ctx context.Context, item T) (R, error)

// AdmissionPolicy decides which queued items may start now.
//
// running lists the items currently executing, oldest admission first.
// queued lists the items waiting, in submission order.
// The policy returns a subset of queued in the order the items should start.
// Items it returns that are not in queued are ignored.
//
// Both slices are copies owned by the policy. Payloads are shared with the
// processor, so a policy must not mutate what pointer payloads point to.
type AdmissionPolicy[T any] interface {
	Admit(ctx context.Context, running, queued []QueuedItem[T]) ([]QueuedItem[T], error)
}

// AdmissionFunc adapts a plain function to AdmissionPolicy.
type AdmissionFunc[T any] func(ctx context.Context, running, queued []QueuedItem[T]) ([]QueuedItem[T], error)

// Admit calls f(ctx, running, queued).
func (f AdmissionFunc[T]) Admit(ctx context.Context, running, queued []QueuedItem[T]) ([]QueuedItem[T], error) {
	return f(ctx, running, queued)
}

// Stats is a point-in-time view of a processor.
type Stats struct {
	Queued    int
	Executing int
	Succeeded uint64
	Failed    uint64
	Cancelled uint64
}
