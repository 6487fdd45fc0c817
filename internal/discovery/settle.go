package discovery

import (
	"context"
	"sync"
)

// Outcome is the settled result of one call passed to Settle.
type Outcome[T any] struct {
	Index int
	Value T
	Err   error
}

// Settle runs fn for every input concurrently and returns once all calls
// have finished, successful or not. Outcomes are in input order.
func Settle[In, Out any](ctx context.Context, inputs []In, fn func(context.Context, In) (Out, error)) []Outcome[Out] {
	outcomes := make([]Outcome[Out], len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := fn(ctx, in)
			outcomes[i] = Outcome[Out]{Index: i, Value: value, Err: err}
		}()
	}
	wg.Wait()

	return outcomes
}

// Successes returns the values of the outcomes that did not fail.
func Successes[T any](outcomes []Outcome[T]) []T {
	var out []T
	for _, o := range outcomes {
		if o.Err == nil {
			out = append(out, o.Value)
		}
	}
	return out
}
