package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fc-troll-detector/internal/config"
	"fc-troll-detector/internal/forum"
	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/page"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
)

// 30 days after 01-ene-2025.
func now() time.Time { return time.Date(2025, time.January, 31, 0, 0, 0, 0, time.Local) }

const threadHTML = `<html><head></head><body><main>
<div class="post"><a href="member.php?u=100">Autor</a></div>
<div class="post"><a href="member.php?u=200">Otro</a></div>
<div class="post"><a href="member.php?u=300">Roto</a></div>
<div class="post"><a href="member.php?u=100">Autor</a></div>
</main></body></html>`

const listingHTML = `<html><head></head><body><main><ul>
<li><div><a id="thread_title_1" href="showthread.php?t=1">Hilo uno</a></div><a href="showthread.php?p=11">@Autor - hoy</a></li>
<li><div><a id="thread_title_2" href="showthread.php?t=2">Hilo dos</a></div><a href="showthread.php?p=22">@Otro - ayer</a></li>
</ul></main></body></html>`

var profiles = map[string]string{
	"100": "Desde 01-ene-2025\n0 Hilos\n50 Mensajes",
	"200": "Desde 01-ene-2015\n5 Hilos\n20 Mensajes",
}

type fakeForum struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
}

func newFakeForum(t *testing.T) *fakeForum {
	t.Helper()
	f := &fakeForum{}
	mux := http.NewServeMux()
	mux.HandleFunc("/foro/member.php", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("u")
		f.record("u=" + id)
		body, ok := profiles[id]
		if !ok {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "<html><body><main>%s</main></body></html>", body)
	})
	mux.HandleFunc("/foro/showthread.php", func(w http.ResponseWriter, r *http.Request) {
		f.record("t=" + r.URL.Query().Get("t"))
		switch r.URL.Query().Get("t") {
		case "1":
			fmt.Fprint(w, threadHTML)
		case "2":
			fmt.Fprint(w, `<html><body><main><a href="member.php?u=200">Otro</a></main></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/foro/forumdisplay.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingHTML)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeForum) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, s)
}

func (f *fakeForum) profileRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		if strings.HasPrefix(r, "u=") {
			out = append(out, r)
		}
	}
	return out
}

func deps(f *fakeForum, settings config.Settings) Deps {
	cfg := config.Config{Settings: settings}
	cfg.Forum.BaseURL = f.URL + "/foro"
	cfg.Forum.Thread.RequestDelay = "1ms"
	cfg.Forum.Listing.RequestDelay = "1ms"
	cfg.FillDefaults()
	return Deps{
		Config: cfg,
		Client: forum.NewClient(cfg.Forum.BaseURL, "", 2*time.Second),
		Now:    now,
	}
}

func load(t *testing.T, d Deps, target string) *page.Page {
	t.Helper()
	p, err := LoadPage(context.Background(), d.Client, target, "")
	if err != nil {
		t.Fatalf("LoadPage: %v", err)
	}
	return p
}

func badges(t *testing.T, s *Session) []string {
	t.Helper()
	html, err := s.HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	p, err := page.Parse(strings.NewReader(html), s.URL())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	var out []string
	p.View(func(doc *goquery.Document) {
		doc.Find(".fc-troll-badge").Each(func(_ int, sel *goquery.Selection) {
			out = append(out, sel.Text())
		})
	})
	return out
}

func count(t *testing.T, s *Session, selector string) int {
	t.Helper()
	html, err := s.HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	return doc.Find(selector).Length()
}

func TestThreadSession(t *testing.T) {
	f := newFakeForum(t)
	d := deps(f, config.Settings{})
	s := New(load(t, d, f.URL+"/foro/showthread.php?t=1"), ModeAuto, d)
	if s.Mode != ModeThread {
		t.Fatalf("mode = %s", s.Mode)
	}

	results, err := s.Analyze(context.Background(), false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	op := results[0]
	if !op.IsOP || op.UserID != "100" || op.Score != (model.ScoreResult{Probability: 54, Tier: model.TierMedium}) {
		t.Errorf("op = %+v", op)
	}
	if results[1].UserID != "200" || results[1].Score.Tier != model.TierLow {
		t.Errorf("second = %+v", results[1])
	}
	if got := f.profileRequests(); got[0] != "u=100" {
		t.Errorf("the author must be fetched first, got %v", got)
	}
	if diff := cmp.Diff([]string{"🟡 54% 👑", "🟢 0%", "🟡 54% 👑"}, badges(t, s)); diff != "" {
		t.Errorf("badges (-want +got):\n%s", diff)
	}
	if n := count(t, s, ".fc-troll-loading"); n != 0 {
		t.Errorf("%d placeholders left on the page", n)
	}

	again, err := s.Analyze(context.Background(), false)
	if err != nil || len(again) != 2 {
		t.Errorf("second Analyze = %d, %v", len(again), err)
	}
	if diff := cmp.Diff([]string{"🟡 54% 👑", "🟢 0%", "🟡 54% 👑"}, badges(t, s)); diff != "" {
		t.Errorf("re-analysis duplicated badges (-want +got):\n%s", diff)
	}
}

func TestTrustedUserBadge(t *testing.T) {
	f := newFakeForum(t)
	d := deps(f, config.Settings{TrustedUsers: []string{"autor"}})
	s := New(load(t, d, f.URL+"/foro/showthread.php?t=1"), ModeThread, d)
	if _, err := s.Analyze(context.Background(), false); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if diff := cmp.Diff([]string{"✅ Fiable 👑", "🟢 0%", "✅ Fiable 👑"}, badges(t, s)); diff != "" {
		t.Errorf("badges (-want +got):\n%s", diff)
	}

	trusted, err := s.ToggleTrust(context.Background(), "Autor")
	if err != nil || trusted {
		t.Fatalf("ToggleTrust = %v, %v", trusted, err)
	}
	if diff := cmp.Diff([]string{"🟡 54% 👑", "🟢 0%", "🟡 54% 👑"}, badges(t, s)); diff != "" {
		t.Errorf("badges after untrust (-want +got):\n%s", diff)
	}
	if s.Results()[0].Trusted {
		t.Errorf("result still marked trusted")
	}
}

func TestAutoAnalyzeOff(t *testing.T) {
	f := newFakeForum(t)
	off := false
	d := deps(f, config.Settings{AutoAnalyze: &off})
	s := New(load(t, d, f.URL+"/foro/showthread.php?t=1"), ModeAuto, d)
	if _, err := s.Analyze(context.Background(), false); !errors.Is(err, ErrAutoAnalyzeOff) {
		t.Fatalf("expected ErrAutoAnalyzeOff, got %v", err)
	}
	if len(f.profileRequests()) != 0 {
		t.Errorf("profiles fetched while disabled")
	}
	if results, err := s.Analyze(context.Background(), true); err != nil || len(results) != 2 {
		t.Errorf("forced Analyze = %d, %v", len(results), err)
	}
}

func TestListingSession(t *testing.T) {
	f := newFakeForum(t)
	d := deps(f, config.Settings{})
	s := New(load(t, d, f.URL+"/foro/forumdisplay.php?f=2"), ModeAuto, d)
	if s.Mode != ModeListing {
		t.Fatalf("mode = %s", s.Mode)
	}
	results, err := s.Analyze(context.Background(), false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	byThread := map[string]model.Assessment{}
	for _, r := range results {
		byThread[r.ThreadID] = r
	}
	if r := byThread["1"]; r.UserID != "100" || r.ThreadTitle != "Hilo uno" || !r.IsOP || r.Score.Probability != 54 {
		t.Errorf("thread 1 = %+v", r)
	}
	if r := byThread["2"]; r.UserID != "200" || r.ThreadURL != f.URL+"/foro/showthread.php?t=2" {
		t.Errorf("thread 2 = %+v", r)
	}
	if diff := cmp.Diff([]string{"🟡 54% 👑", "🟢 0% 👑"}, badges(t, s)); diff != "" {
		t.Errorf("badges (-want +got):\n%s", diff)
	}
	if n := count(t, s, ".fc-troll-badge.fc-badge-compact"); n != 2 {
		t.Errorf("compact badges = %d, want 2", n)
	}
}

func TestSniffModeForFiles(t *testing.T) {
	p, err := page.Parse(strings.NewReader(listingHTML), "https://forocoches.com/foro/")
	if err != nil {
		t.Fatal(err)
	}
	if got := sniffMode(p); got != ModeListing {
		t.Errorf("sniffMode = %s", got)
	}
	if got := DetectMode("https://forocoches.com/foro/index.php"); got != ModeNone {
		t.Errorf("DetectMode = %s", got)
	}
	if _, err := ParseMode("sideways"); err == nil {
		t.Errorf("ParseMode accepted an unknown mode")
	}
}

func TestRegistryExpire(t *testing.T) {
	r := NewRegistry(time.Minute)
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	r.Put(&Session{ID: "a"})
	r.Put(&Session{ID: "b"})

	r.now = func() time.Time { return base.Add(50 * time.Second) }
	if _, ok := r.Get("b"); !ok {
		t.Fatalf("b missing")
	}
	if n := r.Expire(base.Add(90 * time.Second)); n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}
	if _, ok := r.Get("a"); ok {
		t.Errorf("a should have expired")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d", r.Len())
	}
}
