package lw

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of weighting one event of a batch.
// Index is the event's position in the input slice.
type Result struct {
	Index     int
	Weight    float64
	OneWeight float64
	Err       error
}

// WeightBatch weights events concurrently on at most workers goroutines
// (runtime.NumCPU() when workers <= 0). Results are returned in input order.
// Per-event failures are recorded in Result.Err and do not stop the batch; only
// ctx cancellation does, in which case the context error is returned.
func WeightBatch(ctx context.Context, w *Weighter, events []Event, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]Result, len(events))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range events {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = weighOne(w, i, events[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func weighOne(w *Weighter, idx int, ev Event) Result {
	r := Result{Index: idx}
	r.Weight, r.OneWeight, r.Err = w.evaluate(ev)
	return r
}
