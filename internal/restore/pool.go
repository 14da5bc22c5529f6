package restore

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runPool calls fn for every index in [0, n) using at most workers
// goroutines. Indices are handed out in order. The first error cancels
// the context passed to the remaining calls, stops handing out indices
// and is returned once every worker has finished its current call.
func runPool(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	g, ctx := errgroup.WithContext(ctx)

	// Unbuffered so that nothing is claimed ahead of a free worker.
	jobs := make(chan int)
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(ctx, i); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}
