// Package session ties together everything one analysed page needs: its
// document, a settings snapshot, the profile cache view, the fetchers and
// the annotator. Sessions share only the durable cache store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"fc-troll-detector/internal/annotate"
	"fc-troll-detector/internal/cache"
	"fc-troll-detector/internal/config"
	"fc-troll-detector/internal/forum"
	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/page"
	"fc-troll-detector/internal/score"
	"fc-troll-detector/internal/trust"
	"fc-troll-detector/worker"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// Mode is the kind of forum page being analysed.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeThread  Mode = "thread"
	ModeListing Mode = "listing"
	ModeNone    Mode = "none"
)

var (
	ErrAutoAnalyzeOff = errors.New("automatic analysis is disabled")
	ErrUnsupported    = errors.New("page is neither a thread nor a listing")
)

// DetectMode classifies a page by its address.
func DetectMode(rawURL string) Mode {
	switch {
	case strings.Contains(rawURL, "showthread.php"):
		return ModeThread
	case strings.Contains(rawURL, "forumdisplay.php"):
		return ModeListing
	}
	return ModeNone
}

// sniffMode classifies a page without a telling address by its content.
func sniffMode(p *page.Page) Mode {
	mode := ModeNone
	p.View(func(doc *goquery.Document) {
		main := doc.Find("main").First()
		switch {
		case main.Find(`a[id^="thread_title_"]`).Length() > 0:
			mode = ModeListing
		case main.Find(`a[href*="member.php?u="]`).Length() > 0:
			mode = ModeThread
		}
	})
	return mode
}

// ParseMode accepts "auto", "thread" and "listing".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeThread, ModeListing:
		return m, nil
	}
	return ModeNone, fmt.Errorf("unknown mode %q", s)
}

// Deps are the long-lived collaborators shared by sessions.
type Deps struct {
	Config    config.Config
	Client    *forum.Client
	Store     cache.Store
	Persister trust.Persister
	// TrustAction, when set, builds the URL trust buttons post to.
	TrustAction func(sessionID, username string) string
	Now         func() time.Time
}

// Session is one analysed page.
type Session struct {
	ID       string
	Mode     Mode
	Created  time.Time
	Settings config.Settings

	cfg       config.Config
	page      *page.Page
	annotator *annotate.Annotator
	fetcher   *forum.Fetcher
	resolver  *forum.Resolver
	calc      *score.Calculator

	mu       sync.Mutex
	analysed bool
	results  []model.Assessment
}

// New creates a session for p. ModeAuto is resolved from the page URL.
func New(p *page.Page, mode Mode, d Deps) *Session {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	if mode == "" || mode == ModeAuto {
		mode = DetectMode(p.URL())
		if mode == ModeNone {
			mode = sniffMode(p)
		}
	}
	s := &Session{
		ID:       uuid.NewString(),
		Mode:     mode,
		Created:  now(),
		Settings: d.Config.Settings,
		cfg:      d.Config,
		page:     p,
	}
	opts := []annotate.Option{annotate.WithTooltip(s.Settings.Tooltip())}
	if d.Persister != nil {
		opts = append(opts, annotate.WithPersister(d.Persister))
	}
	if d.TrustAction != nil {
		opts = append(opts, annotate.WithTrustAction(func(username string) string {
			return d.TrustAction(s.ID, username)
		}))
	}
	s.annotator = annotate.New(p, trust.New(s.Settings.TrustedUsers), opts...)

	c := cache.New(d.Store,
		cache.WithPrefix(d.Config.Cache.Prefix),
		cache.WithTTL(d.Config.CacheTTL()),
		cache.WithClock(now),
	)
	s.fetcher = forum.NewFetcher(d.Client, c).WithClock(now)
	s.resolver = forum.NewResolver(d.Client)
	s.calc = score.New(s.Settings.ScoreParams()).WithClock(now)
	return s
}

// Analyze runs the driver of the session's mode once. Unless force is
// set it honours the auto-analyze setting.
func (s *Session) Analyze(ctx context.Context, force bool) ([]model.Assessment, error) {
	if !force && !s.Settings.Auto() {
		slog.Info("session: automatic analysis disabled", "session", s.ID)
		return nil, ErrAutoAnalyzeOff
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysed {
		return s.results, nil
	}

	var results []model.Assessment
	switch s.Mode {
	case ModeThread:
		d := &worker.ThreadDriver{
			Fetcher:     s.fetcher,
			Calc:        s.calc,
			Annotator:   s.annotator,
			Concurrency: s.cfg.Forum.Thread.Concurrency,
			MaxUsers:    s.cfg.Forum.Thread.MaxItems,
			Delay:       s.cfg.Forum.Thread.Delay(),
		}
		results = d.Run(ctx, s.page)
	case ModeListing:
		d := &worker.ListingDriver{
			Resolver:    s.resolver,
			Fetcher:     s.fetcher,
			Calc:        s.calc,
			Annotator:   s.annotator,
			BaseURL:     s.cfg.Forum.BaseURL,
			Concurrency: s.cfg.Forum.Listing.Concurrency,
			MaxThreads:  s.cfg.Forum.Listing.MaxItems,
			Delay:       s.cfg.Forum.Listing.Delay(),
		}
		results = d.Run(ctx, s.page)
	default:
		return nil, fmt.Errorf("%s: %w", s.page.URL(), ErrUnsupported)
	}
	s.analysed = true
	s.results = results
	return results, nil
}

// ToggleTrust flips username's trusted state and re-renders its badges.
func (s *Session) ToggleTrust(ctx context.Context, username string) (bool, error) {
	trusted, err := s.annotator.ToggleTrust(ctx, username)
	if err != nil {
		return trusted, err
	}
	s.mu.Lock()
	for i := range s.results {
		if strings.EqualFold(s.results[i].Username, username) {
			s.results[i].Trusted = trusted
		}
	}
	s.mu.Unlock()
	return trusted, nil
}

// Results returns the assessments of the last analysis.
func (s *Session) Results() []model.Assessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Assessment, len(s.results))
	copy(out, s.results)
	return out
}

// HTML renders the annotated page.
func (s *Session) HTML() (string, error) { return s.page.HTML() }

// URL is the address of the analysed page.
func (s *Session) URL() string { return s.page.URL() }

// LoadPage reads target, either an http(s) URL fetched through client or
// a local file whose links resolve against baseURL.
func LoadPage(ctx context.Context, client *forum.Client, target, baseURL string) (*page.Page, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		doc, err := client.Document(ctx, target, "page")
		if err != nil {
			return nil, err
		}
		return page.FromDocument(doc, target)
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if baseURL == "" {
		baseURL = client.BaseURL() + "/"
	}
	return page.Parse(f, baseURL)
}
