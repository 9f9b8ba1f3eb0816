package forum

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/page"

	"github.com/PuerkitoBio/goquery"
)

const (
	profileLinkSelector = `a[href*="member.php?u="]:not([href*="u=0"])`
	threadTitleSelector = `a[id^="thread_title_"]`
	lastPostSelector    = `a[href*="showthread.php?p="]`

	maxNameRunes    = 50
	maxOPClimbDepth = 5
)

var opNameRe = regexp.MustCompile(`@([^-]+)\s*-`)

// profileLink is a qualifying link to a member profile: visible text
// shorter than maxNameRunes and no image inside.
type profileLink struct {
	sel    *goquery.Selection
	userID string
	name   string
	href   string
}

func eachProfileLink(root *goquery.Selection, fn func(l profileLink) bool) {
	root.Find(profileLinkSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		name := strings.TrimSpace(a.Text())
		if name == "" || utf8.RuneCountInString(name) >= maxNameRunes {
			return true
		}
		if a.Find("img").Length() > 0 {
			return true
		}
		href, _ := a.Attr("href")
		m := userIDRe.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		return fn(profileLink{sel: a, userID: m[1], name: name, href: href})
	})
}

// FindUsers returns the users linked from the page's main content, one
// entry per user id in first-seen order. Every qualifying link becomes
// an occurrence.
func FindUsers(p *page.Page) []model.UserReference {
	var users []model.UserReference
	p.Edit(func(e *page.Editor) {
		index := map[string]int{}
		eachProfileLink(e.Document().Find("main").First(), func(l profileLink) bool {
			loc := e.Register(l.sel)
			if i, ok := index[l.userID]; ok {
				users[i].Occurrences = append(users[i].Occurrences, loc)
				return true
			}
			index[l.userID] = len(users)
			users = append(users, model.UserReference{
				UserID:      l.userID,
				DisplayName: l.name,
				ProfileURL:  p.Resolve(l.href),
				Occurrences: []model.LocationID{loc},
			})
			return true
		})
	})
	return users
}

// FindThreads returns the thread rows of a listing page whose OP name can
// be read from a nearby "@Name - " last-post link. Rows without one are
// skipped.
func FindThreads(p *page.Page) []model.ThreadReference {
	var threads []model.ThreadReference
	p.Edit(func(e *page.Editor) {
		seen := map[string]bool{}
		e.Document().Find("main").First().Find(threadTitleSelector).Each(func(_ int, title *goquery.Selection) {
			id, _ := title.Attr("id")
			threadID := strings.TrimPrefix(id, "thread_title_")
			if seen[threadID] {
				return
			}
			seen[threadID] = true

			opLink, opName := nearbyOP(title)
			if opLink == nil {
				return
			}
			threads = append(threads, model.ThreadReference{
				ThreadID:       threadID,
				Title:          strings.TrimSpace(title.Text()),
				TitleLocation:  e.Register(title),
				OPDisplayName:  opName,
				OPLocationHint: e.Register(opLink),
			})
		})
	})
	return threads
}

// nearbyOP climbs from the title through at most maxOPClimbDepth
// ancestors looking at the first last-post link of each.
func nearbyOP(title *goquery.Selection) (*goquery.Selection, string) {
	container := title.Parent()
	for i := 0; i < maxOPClimbDepth && container.Length() > 0; i++ {
		link := container.Find(lastPostSelector).First()
		if link.Length() > 0 {
			if m := opNameRe.FindStringSubmatch(link.Text()); m != nil {
				return link, strings.TrimSpace(m[1])
			}
		}
		container = container.Parent()
	}
	return nil, ""
}

// firstProfile returns the first qualifying profile link in the main
// content of doc.
func firstProfile(doc *goquery.Document, baseURL string) (model.UserReference, bool) {
	main := doc.Find("main").First()
	if main.Length() == 0 {
		return model.UserReference{}, false
	}
	var ref model.UserReference
	found := false
	eachProfileLink(main, func(l profileLink) bool {
		ref = model.UserReference{
			UserID:      l.userID,
			DisplayName: l.name,
			ProfileURL:  absolute(baseURL, l.href),
		}
		found = true
		return false
	})
	return ref, found
}
