// Package scheduler runs units of work under a concurrency ceiling.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"fc-troll-detector/internal/model"

	"golang.org/x/sync/errgroup"
)

// RunBounded runs work for every item with at most limit units in flight.
// A slot is handed to the next item as soon as any unit settles, whatever
// its outcome. Failed items are left out of the result; the rest appear
// in completion order. RunBounded returns once every dispatched unit has
// settled. Items not yet dispatched when ctx is done are skipped.
func RunBounded[T, R any](ctx context.Context, items []T, limit int, work func(context.Context, T) (R, error)) []R {
	if limit <= 0 {
		limit = 1
	}
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make([]R, 0, len(items))
	)
	g.SetLimit(limit)
	for i, item := range items {
		if ctx.Err() != nil {
			slog.Debug("scheduler: context done, skipping remaining items", "skipped", len(items)-i)
			break
		}
		g.Go(func() error {
			r, err := work(ctx, item)
			if err != nil {
				slog.Debug("scheduler: unit failed", "item", itemKey(item), "error", err)
				return nil
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func itemKey(item any) string {
	if w, ok := item.(model.WorkItem); ok {
		return w.Key()
	}
	return "-"
}
