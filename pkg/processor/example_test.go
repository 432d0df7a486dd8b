package processor_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/mediaqueue/pkg/processor"
)

func Example() {
	// At most two items run at the same time.
	limit := processor.AdmissionFunc[string](func(_ context.Context, running, queued []processor.QueuedItem[string]) ([]processor.QueuedItem[string], error) {
		free := 2 - len(running)
		if free <= 0 {
			return nil, nil
		}
		return queued[:min(free, len(queued))], nil
	})

	p, err := processor.New(func(_ context.Context, name string) (int, error) {
		return len(name), nil
	}, limit)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer p.Close()

	n, err := p.Submit("hello").Await()
	fmt.Println(n, err)
	// Output: 5 <nil>
}

func ExampleProcessor_Clear() {
	block := make(chan struct{})
	defer close(block)

	p, _ := processor.New(func(_ context.Context, n int) (int, error) {
		<-block
		return n, nil
	}, processor.AdmissionFunc[int](func(_ context.Context, running, queued []processor.QueuedItem[int]) ([]processor.QueuedItem[int], error) {
		if len(running) > 0 {
			return nil, nil
		}
		return queued[:1], nil
	}))
	defer p.Close()

	f := p.Submit(1)
	p.Clear()

	_, err := f.Await()
	fmt.Println(errors.Is(err, processor.ErrCancelled))
	// Output: true
}
