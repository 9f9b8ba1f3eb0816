package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fc-troll-detector/internal/cache"
	"fc-troll-detector/internal/metrics"
	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/parse"

	"golang.org/x/sync/singleflight"
)

// Fetcher turns profile URLs into snapshots. Within one Fetcher at most
// one retrieval per user id is in flight; concurrent callers share it.
type Fetcher struct {
	client *Client
	cache  *cache.Cache
	now    func() time.Time
	group  singleflight.Group
}

func NewFetcher(client *Client, c *cache.Cache) *Fetcher {
	if c == nil {
		c = cache.New(nil)
	}
	return &Fetcher{client: client, cache: c, now: time.Now}
}

// WithClock replaces time.Now when deriving account age.
func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// Fetch returns the snapshot of the user behind profileURL, from the
// cache when possible. Failures wrap model.ErrFetch or model.ErrParse and
// are never retried.
func (f *Fetcher) Fetch(ctx context.Context, profileURL string) (model.Snapshot, error) {
	userID := UserIDFromURL(profileURL)
	if s, ok := f.cache.Get(ctx, userID); ok {
		metrics.ProfileFetches.WithLabelValues("cache").Inc()
		return s, nil
	}

	v, err, shared := f.group.Do(userID, func() (any, error) {
		// A caller that lost the race may arrive after the winner stored.
		if s, ok := f.cache.Get(ctx, userID); ok {
			return s, nil
		}
		doc, err := f.client.Document(ctx, profileURL, "profile")
		if err != nil {
			return nil, err
		}
		s, err := ParseProfile(userID, doc.Find("body").Text(), f.now())
		if err != nil {
			return nil, err
		}
		f.cache.Put(ctx, userID, s)
		return s, nil
	})
	if err != nil {
		result := "fetch_error"
		if errors.Is(err, model.ErrParse) {
			result = "parse_error"
		}
		metrics.ProfileFetches.WithLabelValues(result).Inc()
		slog.Warn("fetcher: profile lookup failed", "user", userID, "url", profileURL, "error", err)
		return model.Snapshot{}, err
	}
	metrics.ProfileFetches.WithLabelValues("fetched").Inc()
	slog.Debug("fetcher: profile fetched", "user", userID, "shared", shared)
	return v.(model.Snapshot), nil
}

// ParseProfile builds a snapshot from the visible text of a profile page.
// The registration date is mandatory; absent counters read as zero.
func ParseProfile(userID, text string, now time.Time) (model.Snapshot, error) {
	raw, ok := parse.FindRegistrationText(text)
	if !ok {
		return model.Snapshot{}, fmt.Errorf("user %s: registration date not found: %w", userID, model.ErrParse)
	}
	registered, err := parse.ParseRegistrationDate(raw)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("user %s: %w", userID, err)
	}
	return model.NewSnapshot(
		userID,
		raw,
		registered,
		parse.ExtractCounter(text, parse.LabelThreads),
		parse.ExtractCounter(text, parse.LabelMessages),
		parse.DaysSince(registered, now),
	), nil
}
