// Package page holds the mutable HTML document of one analysed forum page
// together with the anchors badges can be attached to.
package page

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"fc-troll-detector/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// Page is safe for concurrent use. goquery selections are not, so every
// read or mutation of the document goes through Edit or View.
type Page struct {
	base *url.URL

	mu      sync.Mutex
	doc     *goquery.Document
	anchors map[model.LocationID]*goquery.Selection
	next    model.LocationID
}

// Parse reads an HTML page. baseURL is the address the page was served
// from; relative links are resolved against it.
func Parse(r io.Reader, baseURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return FromDocument(doc, baseURL)
}

// FromDocument wraps an already parsed document.
func FromDocument(doc *goquery.Document, baseURL string) (*Page, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	return &Page{
		base:    base,
		doc:     doc,
		anchors: make(map[model.LocationID]*goquery.Selection),
	}, nil
}

// URL returns the address the page was served from.
func (p *Page) URL() string { return p.base.String() }

// Resolve turns href into an absolute URL. Unparsable hrefs are returned
// unchanged.
func (p *Page) Resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return p.base.ResolveReference(ref).String()
}

// Register records sel as a badge anchor and returns its location.
// Registering the same node twice returns the existing location.
func (p *Page) Register(sel *goquery.Selection) model.LocationID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.register(sel)
}

func (p *Page) register(sel *goquery.Selection) model.LocationID {
	node := sel.Get(0)
	for id, s := range p.anchors {
		if s.Get(0) == node {
			return id
		}
	}
	p.next++
	p.anchors[p.next] = sel.First()
	return p.next
}

// View runs fn with the document locked. fn must not retain selections.
func (p *Page) View(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// Edit runs fn with the document locked and gives it access to the
// anchor table.
func (p *Page) Edit(fn func(e *Editor)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&Editor{p: p})
}

// HTML renders the current state of the document.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return goquery.OuterHtml(p.doc.Selection)
}

// Editor is the locked view handed to Edit callbacks.
type Editor struct {
	p *Page
}

// Document returns the underlying document.
func (e *Editor) Document() *goquery.Document { return e.p.doc }

// Anchor returns the element registered under loc.
func (e *Editor) Anchor(loc model.LocationID) (*goquery.Selection, bool) {
	s, ok := e.p.anchors[loc]
	return s, ok
}

// Register is Page.Register for callers that already hold the lock.
func (e *Editor) Register(sel *goquery.Selection) model.LocationID {
	return e.p.register(sel)
}
