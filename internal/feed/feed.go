// Package feed publishes the scored threads of a listing page as Atom.
package feed

import (
	"fmt"
	"log/slog"
	"time"

	"fc-troll-detector/internal/model"

	"github.com/gorilla/feeds"
)

var tierLabel = map[model.Tier]string{
	model.TierHigh:   "🔴 high",
	model.TierMedium: "🟡 medium",
	model.TierLow:    "🟢 low",
}

// Atom renders one entry per assessment that belongs to a thread. Entries
// without a thread URL (thread-mode results) are skipped.
func Atom(title, pageURL string, results []model.Assessment, now time.Time) (string, error) {
	f := &feeds.Feed{
		Title:       title,
		Description: "Thread openers scored by account age and activity",
		Link:        &feeds.Link{Href: pageURL, Rel: "self", Type: "text/html"},
		Id:          pageURL,
		Created:     now,
		Updated:     now,
	}
	if f.Title == "" {
		f.Title = "FC Troll Detector"
	}

	for _, a := range results {
		if a.ThreadURL == "" {
			continue
		}
		f.Items = append(f.Items, &feeds.Item{
			Title:       a.ThreadTitle,
			Link:        &feeds.Link{Href: a.ThreadURL, Rel: "alternate", Type: "text/html"},
			Id:          a.ThreadURL,
			Author:      &feeds.Author{Name: a.Username},
			Description: describe(a),
			Created:     now,
		})
	}

	out, err := f.ToAtom()
	if err != nil {
		return "", fmt.Errorf("feed: atom: %w", err)
	}
	slog.Debug("feed: generated", "entries", len(f.Items), "bytes", len(out))
	return out, nil
}

func describe(a model.Assessment) string {
	s := a.Snapshot
	risk := fmt.Sprintf("%s %d%%", tierLabel[a.Score.Tier], a.Score.Probability)
	if a.Trusted {
		risk = "✅ trusted"
	}
	return fmt.Sprintf(`<p><strong>%s</strong> by <a href="%s">%s</a></p><p>Registered %s (%d days), %d threads, %d messages, %.2f msgs/day</p>`,
		risk, a.ProfileURL, a.Username, s.RegistrationDateRaw, s.DaysRegistered, s.ThreadCount, s.MessageCount, s.MessagesPerDay)
}
