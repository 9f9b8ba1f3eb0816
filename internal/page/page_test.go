package page

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestRegisterIsStablePerNode(t *testing.T) {
	p, err := Parse(strings.NewReader(`<main><a id="x">uno</a><a id="y">dos</a></main>`), "https://forocoches.com/foro/showthread.php?t=1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var a, b, again int
	p.Edit(func(e *Editor) {
		a = int(e.Register(e.Document().Find("#x")))
		b = int(e.Register(e.Document().Find("#y")))
		again = int(e.Register(e.Document().Find("#x")))
	})
	if a == b || a != again {
		t.Fatalf("locations a=%d b=%d again=%d", a, b, again)
	}
	p.Edit(func(e *Editor) {
		sel, ok := e.Anchor(1)
		if !ok || sel.AttrOr("id", "") != "x" {
			t.Errorf("anchor 1 = %v, %v", sel, ok)
		}
		if _, ok := e.Anchor(99); ok {
			t.Errorf("unknown anchor found")
		}
	})
}

func TestResolveAndHTML(t *testing.T) {
	p, err := Parse(strings.NewReader(`<p>hola</p>`), "https://forocoches.com/foro/forumdisplay.php?f=2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := p.Resolve("member.php?u=3"); got != "https://forocoches.com/foro/member.php?u=3" {
		t.Errorf("Resolve = %q", got)
	}
	if got := p.Resolve("https://other.example/x"); got != "https://other.example/x" {
		t.Errorf("Resolve absolute = %q", got)
	}
	p.View(func(doc *goquery.Document) { doc.Find("p").SetText("adiós") })
	html, err := p.HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, "<p>adiós</p>") || !strings.HasPrefix(html, "<html>") {
		t.Errorf("HTML = %s", html)
	}
}
