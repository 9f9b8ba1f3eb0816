// Package annotate writes risk badges into a page next to the elements
// that reference a user.
package annotate

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"

	"fc-troll-detector/internal/metrics"
	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/page"
	"fc-troll-detector/internal/trust"

	"github.com/PuerkitoBio/goquery"
)

//go:embed badge.tmpl
var badgeTpl string

//go:embed badge.css
var badgeCSS string

var compiled = template.Must(template.New("annotate").Parse(badgeTpl))

const styleID = "fc-troll-style"

// Badge is what gets rendered at one location.
type Badge struct {
	Username string
	Result   model.ScoreResult
	Snapshot model.Snapshot
	IsOP     bool
	Compact  bool
}

// Annotator owns the badges of one page. Each location is rendered at
// most once; trust toggles re-render in place.
type Annotator struct {
	page        *page.Page
	trusted     *trust.Set
	persister   trust.Persister
	showTooltip bool
	action      func(username string) string

	mu       sync.Mutex
	rendered map[model.LocationID]Badge
	pending  map[model.LocationID]bool
	byUser   map[string][]model.LocationID
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithTooltip toggles the detail tooltip on badges.
func WithTooltip(show bool) Option { return func(a *Annotator) { a.showTooltip = show } }

// WithPersister stores the trusted list after every toggle.
func WithPersister(p trust.Persister) Option { return func(a *Annotator) { a.persister = p } }

// WithTrustAction wraps each trust button in a form posting to the URL
// returned for the username.
func WithTrustAction(fn func(username string) string) Option {
	return func(a *Annotator) { a.action = fn }
}

func New(p *page.Page, trusted *trust.Set, opts ...Option) *Annotator {
	if trusted == nil {
		trusted = trust.New(nil)
	}
	a := &Annotator{
		page:        p,
		trusted:     trusted,
		showTooltip: true,
		rendered:    make(map[model.LocationID]Badge),
		pending:     make(map[model.LocationID]bool),
		byUser:      make(map[string][]model.LocationID),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Trusted is the trust set badges are rendered against.
func (a *Annotator) Trusted() *trust.Set { return a.trusted }

// Placeholder shows a loading marker at loc until the returned release
// is called. Locations that already carry a badge or a marker get a
// no-op release. release is safe to call more than once.
func (a *Annotator) Placeholder(loc model.LocationID, compact bool) (release func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, done := a.rendered[loc]; done || a.pending[loc] {
		return func() {}
	}
	html, err := execute("loading", struct {
		Loc     model.LocationID
		Compact bool
	}{loc, compact})
	if err != nil {
		slog.Error("annotate: render placeholder", "error", err)
		return func() {}
	}
	placed := false
	a.page.Edit(func(e *page.Editor) {
		anchor, ok := e.Anchor(loc)
		if !ok {
			return
		}
		ensureStyle(e.Document())
		anchor.AfterHtml(html)
		placed = true
	})
	if !placed {
		return func() {}
	}
	a.pending[loc] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.removePending(loc)
		})
	}
}

// removePending must be called with a.mu held.
func (a *Annotator) removePending(loc model.LocationID) {
	if !a.pending[loc] {
		return
	}
	delete(a.pending, loc)
	a.page.Edit(func(e *page.Editor) {
		e.Document().Find(fmt.Sprintf(`[data-fc-pending="%d"]`, loc)).Remove()
	})
}

// Render places b at loc and reports whether it did. A location that
// already has a badge is left untouched.
func (a *Annotator) Render(loc model.LocationID, b Badge) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, done := a.rendered[loc]; done {
		return false
	}
	html, state, err := a.badgeHTML(loc, b)
	if err != nil {
		slog.Error("annotate: render badge", "user", b.Username, "error", err)
		return false
	}
	a.removePending(loc)

	placed := false
	a.page.Edit(func(e *page.Editor) {
		anchor, ok := e.Anchor(loc)
		if !ok {
			return
		}
		ensureStyle(e.Document())
		anchor.AfterHtml(html)
		placed = true
	})
	if !placed {
		slog.Debug("annotate: unknown location", "loc", loc)
		return false
	}
	a.rendered[loc] = b
	key := strings.ToLower(b.Username)
	a.byUser[key] = append(a.byUser[key], loc)
	metrics.BadgesRendered.WithLabelValues(state).Inc()
	return true
}

// Rendered reports whether loc carries a badge.
func (a *Annotator) Rendered(loc model.LocationID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.rendered[loc]
	return ok
}

// ToggleTrust flips the trusted state of username, persists the list and
// re-renders every badge of that user. It returns the new state. When
// rendering or persisting fails the change is undone and no badge is
// touched.
func (a *Annotator) ToggleTrust(ctx context.Context, username string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.trusted.Toggle(username)
	locs := a.byUser[strings.ToLower(username)]
	htmls := make([]string, len(locs))
	for i, loc := range locs {
		html, _, err := a.badgeHTML(loc, a.rendered[loc])
		if err != nil {
			a.trusted.Toggle(username)
			return !now, fmt.Errorf("render badge of %s: %w", username, err)
		}
		htmls[i] = html
	}
	if a.persister != nil {
		if err := a.persister.SaveTrusted(ctx, a.trusted.List()); err != nil {
			a.trusted.Toggle(username)
			return !now, fmt.Errorf("persist trusted users: %w", err)
		}
	}
	a.page.Edit(func(e *page.Editor) {
		for i, loc := range locs {
			e.Document().Find(fmt.Sprintf(`[data-fc-loc="%d"]`, loc)).ReplaceWithHtml(htmls[i])
		}
	})
	slog.Info("annotate: trust toggled", "user", username, "trusted", now, "badges", len(locs))
	return now, nil
}

type badgeView struct {
	Loc         model.LocationID
	User        string
	Name        string
	Class       string
	Compact     bool
	Trusted     bool
	Probability int
	IsOP        bool
	Label       string
	Tooltip     string
	Action      string
}

var tierLook = map[model.Tier]struct{ emoji, class string }{
	model.TierHigh:   {"🔴", "troll-alto"},
	model.TierMedium: {"🟡", "troll-medio"},
	model.TierLow:    {"🟢", "troll-bajo"},
}

func (a *Annotator) badgeHTML(loc model.LocationID, b Badge) (string, string, error) {
	v := badgeView{
		Loc:         loc,
		User:        strings.ToLower(b.Username),
		Name:        b.Username,
		Compact:     b.Compact,
		Trusted:     a.trusted.Contains(b.Username),
		Probability: b.Result.Probability,
		IsOP:        b.IsOP,
	}
	crown := ""
	if b.IsOP {
		crown = " 👑"
	}
	state := string(b.Result.Tier)
	switch {
	case v.Trusted:
		state = "trusted"
		v.Class = "troll-fiable"
		v.Label = "✅ Fiable" + crown
		if b.Compact {
			v.Label = "✅"
		}
	default:
		look, ok := tierLook[b.Result.Tier]
		if !ok {
			look = tierLook[model.TierLow]
		}
		v.Class = look.class
		v.Label = fmt.Sprintf("%s %d%%%s", look.emoji, b.Result.Probability, crown)
	}
	if a.showTooltip {
		v.Tooltip = Tooltip(b, v.Trusted)
	}
	if a.action != nil {
		v.Action = a.action(b.Username)
	}
	html, err := execute("badge", v)
	return html, state, err
}

// Tooltip is the multi-line detail text of a badge.
func Tooltip(b Badge, trusted bool) string {
	var sb strings.Builder
	if trusted {
		sb.WriteString("⭐ USUARIO FIABLE\n")
	}
	op := ""
	if b.IsOP {
		op = "(OP) "
	}
	s := b.Snapshot
	fmt.Fprintf(&sb, "🎯 %sProbabilidad Troll: %d%%\n", op, b.Result.Probability)
	fmt.Fprintf(&sb, "📅 Registro: %s\n", s.RegistrationDateRaw)
	fmt.Fprintf(&sb, "📝 Hilos: %d\n", s.ThreadCount)
	fmt.Fprintf(&sb, "💬 Mensajes: %d\n", s.MessageCount)
	fmt.Fprintf(&sb, "📊 Msgs/día: %.2f\n", s.MessagesPerDay)
	fmt.Fprintf(&sb, "⏱️ Antigüedad: %d días", s.DaysRegistered)
	return sb.String()
}

var execute = executeTemplate

func executeTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := compiled.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func ensureStyle(doc *goquery.Document) {
	if doc.Find("style#"+styleID).Length() > 0 {
		return
	}
	style := `<style id="` + styleID + `">` + badgeCSS + `</style>`
	if head := doc.Find("head").First(); head.Length() > 0 {
		head.AppendHtml(style)
		return
	}
	doc.Find("body").First().PrependHtml(style)
}
