package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEach applies fn to every item with at most workers goroutines.
// Results and per-item errors keep input order. A per-item error does not
// stop the batch; only context cancellation does.
func forEach[In, Out any](ctx context.Context, workers int, items []In, fn func(In) (Out, error)) ([]Out, []error, error) {
	out := make([]Out, len(items))
	errs := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i], errs[i] = fn(item)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return out, errs, nil
}
