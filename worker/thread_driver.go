package worker

import (
	"context"
	"log/slog"
	"time"

	"fc-troll-detector/internal/annotate"
	"fc-troll-detector/internal/forum"
	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/page"
	"fc-troll-detector/internal/scheduler"
	"fc-troll-detector/internal/score"
)

// ProfileFetcher resolves a profile URL into a snapshot.
type ProfileFetcher interface {
	Fetch(ctx context.Context, profileURL string) (model.Snapshot, error)
}

// ThreadDriver badges every user linked from a thread page. The first
// user found is the thread's author and is processed on its own before
// anyone else is dispatched.
type ThreadDriver struct {
	Fetcher     ProfileFetcher
	Calc        *score.Calculator
	Annotator   *annotate.Annotator
	Concurrency int
	MaxUsers    int
	Delay       time.Duration
}

// Run analyses p and returns the users that were scored.
func (d *ThreadDriver) Run(ctx context.Context, p *page.Page) []model.Assessment {
	users := forum.FindUsers(p)
	if len(users) == 0 {
		slog.Info("thread-driver: no users found", "url", p.URL())
		return nil
	}
	if d.MaxUsers > 0 && len(users) > d.MaxUsers {
		users = users[:d.MaxUsers]
	}
	slog.Info("thread-driver: analysing", "url", p.URL(), "users", len(users), "concurrency", d.Concurrency)

	var out []model.Assessment
	if a, err := d.process(ctx, users[0], true); err == nil {
		out = append(out, a)
	}
	rest := scheduler.RunBounded(ctx, users[1:], d.Concurrency, func(ctx context.Context, u model.UserReference) (model.Assessment, error) {
		return d.process(ctx, u, false)
	})
	out = append(out, rest...)
	slog.Info("thread-driver: done", "url", p.URL(), "scored", len(out), "found", len(users))
	return out
}

func (d *ThreadDriver) process(ctx context.Context, u model.UserReference, isOP bool) (model.Assessment, error) {
	releases := make([]func(), 0, len(u.Occurrences))
	for _, loc := range u.Occurrences {
		releases = append(releases, d.Annotator.Placeholder(loc, false))
	}
	releaseAll := func() {
		for _, r := range releases {
			r()
		}
	}
	defer releaseAll()

	if err := pause(ctx, d.Delay); err != nil {
		return model.Assessment{}, err
	}
	snap, err := d.Fetcher.Fetch(ctx, u.ProfileURL)
	releaseAll()
	if err != nil {
		return model.Assessment{}, err
	}

	res := d.Calc.Score(snap)
	for _, loc := range u.Occurrences {
		d.Annotator.Render(loc, annotate.Badge{
			Username: u.DisplayName,
			Result:   res,
			Snapshot: snap,
			IsOP:     isOP,
		})
	}
	return model.Assessment{
		UserID:     u.UserID,
		Username:   u.DisplayName,
		ProfileURL: u.ProfileURL,
		Snapshot:   snap,
		Score:      res,
		IsOP:       isOP,
		Trusted:    d.Annotator.Trusted().Contains(u.DisplayName),
	}, nil
}

// pause waits d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
