package worker

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically removes expired state: idle sessions, stale cache
// rows.
type Janitor struct {
	Name     string
	Interval time.Duration
	Sweep    func(ctx context.Context, now time.Time) (int64, error)
}

func (w *Janitor) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 10 * time.Minute
	}

	// initial run
	w.runOnce(ctx)

	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Janitor) runOnce(ctx context.Context) {
	n, err := w.Sweep(ctx, time.Now())
	if err != nil {
		slog.Error("janitor: sweep error", "janitor", w.Name, "error", err)
		return
	}
	if n > 0 {
		slog.Info("janitor: removed expired entries", "janitor", w.Name, "count", n)
	}
}
