// Package forum talks to the forum: it retrieves pages, discovers profile
// references on them and turns profile pages into snapshots.
package forum

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fc-troll-detector/internal/metrics"
	"fc-troll-detector/internal/model"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultBaseURL   = "https://forocoches.com/foro"
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) fc-troll-detector"
)

// HTTPError is returned for non-2xx responses. It matches model.ErrFetch.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("forum: GET %s: status %d", e.URL, e.StatusCode)
}

func (e *HTTPError) Unwrap() error { return model.ErrFetch }

// Client retrieves and parses forum pages.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

// BaseURL is the forum root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Document GETs rawURL and parses the body. kind labels the request in
// metrics ("profile", "thread", "page"). Failures wrap model.ErrFetch.
func (c *Client) Document(ctx context.Context, rawURL, kind string) (doc *goquery.Document, err error) {
	start := time.Now()
	defer func() { metrics.ObserveForumRequest(kind, start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %v: %w", rawURL, err, model.ErrFetch)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %v: %w", rawURL, err, model.ErrFetch)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	doc, err = goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", rawURL, err, model.ErrFetch)
	}
	return doc, nil
}
