package forum

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	userIDRe   = regexp.MustCompile(`u=(\d+)`)
	threadIDRe = regexp.MustCompile(`[?&]t=(\d+)`)
)

// UserIDFromURL extracts the numeric id of a member.php link. URLs
// without one are their own id.
func UserIDFromURL(profileURL string) string {
	if m := userIDRe.FindStringSubmatch(profileURL); m != nil {
		return m[1]
	}
	return profileURL
}

// ThreadIDFromURL extracts the t= parameter of a showthread.php link.
func ThreadIDFromURL(rawURL string) (string, bool) {
	m := threadIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ThreadURL is the first page of a thread.
func ThreadURL(baseURL, threadID string) string {
	return strings.TrimRight(baseURL, "/") + "/showthread.php?t=" + url.QueryEscape(threadID)
}

// ProfileURL is the profile page of a member.
func ProfileURL(baseURL, userID string) string {
	return strings.TrimRight(baseURL, "/") + "/member.php?u=" + url.QueryEscape(userID)
}

// absolute resolves href against baseURL the way a browser resolves
// links relative to the forum root.
func absolute(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
