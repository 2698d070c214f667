package chain

import (
	"context"
	"sync"
)

// Batch runs independent read-only fetches concurrently and waits for all of
// them. The first error (by argument order) is returned; partial results are
// discarded by callers since a wrong figure is worse than a failed call.
// Dependent reads must be sequenced by the caller, not batched.
func Batch(ctx context.Context, fetches ...func(context.Context) error) error {
	if len(fetches) == 1 {
		return fetches[0](ctx)
	}

	errs := make([]error, len(fetches))
	var wg sync.WaitGroup
	wg.Add(len(fetches))
	for i, fetch := range fetches {
		go func(i int, fetch func(context.Context) error) {
			defer wg.Done()
			errs[i] = fetch(ctx)
		}(i, fetch)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
