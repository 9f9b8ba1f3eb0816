package annotate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/page"
	"fc-troll-detector/internal/trust"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
)

const doc = `<html><head></head><body><main>
<div><a id="p1" href="member.php?u=1">Pepe</a></div>
<div><a id="p2" href="member.php?u=1">Pepe</a></div>
<div><a id="p3" href="member.php?u=2">Ana</a></div>
</main></body></html>`

func setup(t *testing.T) (*page.Page, []model.LocationID) {
	t.Helper()
	p, err := page.Parse(strings.NewReader(doc), "https://forocoches.com/foro/showthread.php?t=1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var locs []model.LocationID
	p.Edit(func(e *page.Editor) {
		for _, id := range []string{"#p1", "#p2", "#p3"} {
			locs = append(locs, e.Register(e.Document().Find(id)))
		}
	})
	return p, locs
}

func badgeFor(name string, isOP bool) Badge {
	reg := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	return Badge{
		Username: name,
		Result:   model.ScoreResult{Probability: 54, Tier: model.TierMedium},
		Snapshot: model.NewSnapshot("1", "01-dic-2024", reg, 0, 50, 30),
		IsOP:     isOP,
	}
}

func find(p *page.Page, selector string) (texts []string) {
	p.View(func(d *goquery.Document) {
		d.Find(selector).Each(func(_ int, s *goquery.Selection) {
			texts = append(texts, s.Text())
		})
	})
	return texts
}

func attr(p *page.Page, selector, name string) string {
	var v string
	p.View(func(d *goquery.Document) { v = d.Find(selector).First().AttrOr(name, "") })
	return v
}

func TestRenderIsIdempotent(t *testing.T) {
	p, locs := setup(t)
	a := New(p, nil)

	if !a.Render(locs[0], badgeFor("Pepe", true)) {
		t.Fatalf("first render refused")
	}
	if a.Render(locs[0], badgeFor("Pepe", false)) {
		t.Errorf("second render at the same location accepted")
	}
	got := find(p, ".fc-troll-badge")
	if diff := cmp.Diff([]string{"🟡 54% 👑"}, got); diff != "" {
		t.Errorf("badges mismatch (-want +got):\n%s", diff)
	}
	if n := len(find(p, "style#fc-troll-style")); n != 1 {
		t.Errorf("style blocks = %d", n)
	}
	if !a.Rendered(locs[0]) || a.Rendered(locs[1]) || len(find(p, ".fc-badge-container")) != 1 {
		t.Errorf("rendered bookkeeping wrong")
	}
	if a.Render(model.LocationID(999), badgeFor("X", false)) {
		t.Errorf("unknown location rendered")
	}
}

func TestTrustedBadge(t *testing.T) {
	p, locs := setup(t)
	a := New(p, trust.New([]string{"pepe"}))

	a.Render(locs[0], badgeFor("Pepe", false))
	compact := badgeFor("Pepe", true)
	compact.Compact = true
	a.Render(locs[1], compact)

	if diff := cmp.Diff([]string{"✅ Fiable", "✅"}, find(p, ".fc-troll-badge")); diff != "" {
		t.Errorf("badges mismatch (-want +got):\n%s", diff)
	}
	tooltip := attr(p, ".fc-troll-badge", "title")
	if !strings.HasPrefix(tooltip, "⭐ USUARIO FIABLE\n🎯 Probabilidad Troll: 54%") {
		t.Errorf("tooltip = %q", tooltip)
	}
	if got := attr(p, ".fc-badge-container", "data-usuario"); got != "pepe" {
		t.Errorf("data-usuario = %q", got)
	}
	if diff := cmp.Diff([]string{"★", "★"}, find(p, ".fc-whitelist-btn")); diff != "" {
		t.Errorf("buttons mismatch (-want +got):\n%s", diff)
	}
}

func TestTooltipDisabled(t *testing.T) {
	p, locs := setup(t)
	a := New(p, nil, WithTooltip(false))
	a.Render(locs[2], badgeFor("Ana", false))
	var has bool
	p.View(func(d *goquery.Document) { _, has = d.Find(".fc-troll-badge").Attr("title") })
	if has {
		t.Errorf("tooltip rendered while disabled")
	}
}

func TestTooltipText(t *testing.T) {
	want := "🎯 (OP) Probabilidad Troll: 54%\n" +
		"📅 Registro: 01-dic-2024\n" +
		"📝 Hilos: 0\n" +
		"💬 Mensajes: 50\n" +
		"📊 Msgs/día: 1.67\n" +
		"⏱️ Antigüedad: 30 días"
	if diff := cmp.Diff(want, Tooltip(badgeFor("Pepe", true), false)); diff != "" {
		t.Errorf("tooltip mismatch (-want +got):\n%s", diff)
	}
}

func TestToggleTrustRerendersEveryBadge(t *testing.T) {
	p, locs := setup(t)
	var saved [][]string
	a := New(p, nil, WithPersister(trust.PersisterFunc(func(_ context.Context, names []string) error {
		saved = append(saved, names)
		return nil
	})))
	a.Render(locs[0], badgeFor("Pepe", true))
	a.Render(locs[1], badgeFor("Pepe", false))
	a.Render(locs[2], badgeFor("Ana", false))

	now, err := a.ToggleTrust(context.Background(), "PEPE")
	if err != nil || !now {
		t.Fatalf("ToggleTrust = %v, %v", now, err)
	}
	if diff := cmp.Diff([]string{"✅ Fiable 👑", "✅ Fiable", "🟡 54%"}, find(p, ".fc-troll-badge")); diff != "" {
		t.Errorf("after trust (-want +got):\n%s", diff)
	}
	if len(find(p, ".fc-badge-container")) != 3 {
		t.Errorf("re-render duplicated containers")
	}

	now, err = a.ToggleTrust(context.Background(), "pepe")
	if err != nil || now {
		t.Fatalf("ToggleTrust = %v, %v", now, err)
	}
	if diff := cmp.Diff([]string{"🟡 54% 👑", "🟡 54%", "🟡 54%"}, find(p, ".fc-troll-badge")); diff != "" {
		t.Errorf("after untrust (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"PEPE"}, {}}, saved); diff != "" {
		t.Errorf("persisted lists (-want +got):\n%s", diff)
	}
}

func TestToggleTrustPersistFailureReverts(t *testing.T) {
	p, locs := setup(t)
	a := New(p, nil, WithPersister(trust.PersisterFunc(func(context.Context, []string) error {
		return errors.New("read-only config")
	})))
	a.Render(locs[2], badgeFor("Ana", false))
	if _, err := a.ToggleTrust(context.Background(), "Ana"); err == nil {
		t.Fatalf("expected error")
	}
	if a.Trusted().Contains("Ana") {
		t.Errorf("failed toggle left Ana trusted")
	}
	if diff := cmp.Diff([]string{"🟡 54%"}, find(p, ".fc-troll-badge")); diff != "" {
		t.Errorf("badge changed (-want +got):\n%s", diff)
	}
}

func TestToggleTrustRenderFailureLeavesBadges(t *testing.T) {
	p, locs := setup(t)
	persisted := false
	a := New(p, nil, WithPersister(trust.PersisterFunc(func(context.Context, []string) error {
		persisted = true
		return nil
	})))
	a.Render(locs[0], badgeFor("Pepe", true))
	a.Render(locs[1], badgeFor("Pepe", false))

	calls := 0
	execute = func(name string, data any) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("template broken")
		}
		return executeTemplate(name, data)
	}
	t.Cleanup(func() { execute = executeTemplate })

	if _, err := a.ToggleTrust(context.Background(), "Pepe"); err == nil {
		t.Fatalf("expected error")
	}
	if persisted {
		t.Errorf("trusted list persisted despite the failed render")
	}
	if a.Trusted().Contains("Pepe") {
		t.Errorf("failed toggle left Pepe trusted")
	}
	if diff := cmp.Diff([]string{"🟡 54% 👑", "🟡 54%"}, find(p, ".fc-troll-badge")); diff != "" {
		t.Errorf("badges changed (-want +got):\n%s", diff)
	}
}

func TestPlaceholderLifecycle(t *testing.T) {
	p, locs := setup(t)
	a := New(p, nil)

	release := a.Placeholder(locs[0], false)
	if got := find(p, ".fc-troll-loading"); len(got) != 1 || got[0] != "⏳" {
		t.Fatalf("placeholder = %v", got)
	}
	if len(find(p, ".fc-troll-loading")) != 1 {
		t.Fatalf("duplicate placeholder")
	}
	a.Placeholder(locs[0], false)()
	release()
	release()
	if got := find(p, ".fc-troll-loading"); len(got) != 0 {
		t.Errorf("placeholder left after release: %v", got)
	}

	release = a.Placeholder(locs[1], true)
	a.Render(locs[1], badgeFor("Pepe", false))
	if got := find(p, ".fc-troll-loading"); len(got) != 0 {
		t.Errorf("placeholder left after render: %v", got)
	}
	release()
	noop := a.Placeholder(locs[1], false)
	if got := find(p, ".fc-troll-loading"); len(got) != 0 {
		t.Errorf("placeholder added to a badged location")
	}
	noop()
}

func TestTrustAction(t *testing.T) {
	p, locs := setup(t)
	a := New(p, nil, WithTrustAction(func(username string) string { return "/sessions/s1/trust/" + username }))
	a.Render(locs[2], badgeFor("Ana", false))
	if got := attr(p, ".fc-whitelist-form", "action"); got != "/sessions/s1/trust/Ana" {
		t.Errorf("form action = %q", got)
	}
}
