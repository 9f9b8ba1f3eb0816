package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fc-troll-detector/internal/annotate"
	"fc-troll-detector/internal/forum"
	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/page"
	"fc-troll-detector/internal/scheduler"
	"fc-troll-detector/internal/score"
)

// OPResolver finds the author of a thread.
type OPResolver interface {
	ResolveOP(ctx context.Context, threadID string) (model.UserReference, error)
}

var errAlreadyBadged = errors.New("thread already badged")

// ListingDriver puts a compact badge of the author next to every thread
// title of a listing page.
type ListingDriver struct {
	Resolver    OPResolver
	Fetcher     ProfileFetcher
	Calc        *score.Calculator
	Annotator   *annotate.Annotator
	BaseURL     string
	Concurrency int
	MaxThreads  int
	Delay       time.Duration
}

// Run analyses p and returns the thread authors that were scored.
func (d *ListingDriver) Run(ctx context.Context, p *page.Page) []model.Assessment {
	threads := forum.FindThreads(p)
	if len(threads) == 0 {
		slog.Warn("listing-driver: no threads found", "url", p.URL())
		return nil
	}
	if d.MaxThreads > 0 && len(threads) > d.MaxThreads {
		threads = threads[:d.MaxThreads]
	}
	slog.Info("listing-driver: analysing", "url", p.URL(), "threads", len(threads), "concurrency", d.Concurrency)

	out := scheduler.RunBounded(ctx, threads, d.Concurrency, d.process)
	slog.Info("listing-driver: done", "url", p.URL(), "scored", len(out), "found", len(threads))
	return out
}

func (d *ListingDriver) process(ctx context.Context, t model.ThreadReference) (model.Assessment, error) {
	if d.Annotator.Rendered(t.TitleLocation) {
		return model.Assessment{}, errAlreadyBadged
	}
	release := d.Annotator.Placeholder(t.TitleLocation, true)
	defer release()

	if err := pause(ctx, d.Delay); err != nil {
		return model.Assessment{}, err
	}
	op, err := d.Resolver.ResolveOP(ctx, t.ThreadID)
	if err != nil {
		return model.Assessment{}, err
	}
	snap, err := d.Fetcher.Fetch(ctx, op.ProfileURL)
	release()
	if err != nil {
		return model.Assessment{}, err
	}

	name := op.DisplayName
	if name == "" {
		name = t.OPDisplayName
	}
	res := d.Calc.Score(snap)
	d.Annotator.Render(t.TitleLocation, annotate.Badge{
		Username: name,
		Result:   res,
		Snapshot: snap,
		IsOP:     true,
		Compact:  true,
	})
	return model.Assessment{
		UserID:      op.UserID,
		Username:    name,
		ProfileURL:  op.ProfileURL,
		Snapshot:    snap,
		Score:       res,
		IsOP:        true,
		Trusted:     d.Annotator.Trusted().Contains(name),
		ThreadID:    t.ThreadID,
		ThreadTitle: t.Title,
		ThreadURL:   forum.ThreadURL(d.BaseURL, t.ThreadID),
	}, nil
}
