// Package report renders the assessments of a page as Markdown.
package report

import (
	"bytes"
	_ "embed"
	"sort"
	"strings"
	"text/template"
	"time"

	"fc-troll-detector/internal/model"
)

type Item struct {
	Username    string
	ProfileURL  string
	IsOP        bool
	Trusted     bool
	Probability int
	Tier        model.Tier
	Emoji       string
	Registered  string
	Threads     int
	Messages    int
	PerDay      float64
	Days        int
	ThreadTitle string
	ThreadURL   string
}

type Data struct {
	Title    string
	URL      string
	Mode     string
	Datetime string
	Listing  bool
	Items    []Item

	High, Medium, Low, Trusted int
}

//go:embed report.tmpl
var reportTpl string

var compiled = template.Must(template.New("report").Parse(reportTpl))

func Render(d Data) (string, error) {
	var buf bytes.Buffer
	if err := compiled.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var tierEmoji = map[model.Tier]string{
	model.TierHigh:   "🔴",
	model.TierMedium: "🟡",
	model.TierLow:    "🟢",
}

// Build turns assessments into report data, riskiest first. Trusted
// users are counted apart from the tiers.
func Build(title, pageURL, mode string, results []model.Assessment, now time.Time) Data {
	d := Data{
		Title:    ExpandVars(title, now),
		URL:      pageURL,
		Mode:     mode,
		Datetime: now.UTC().Format(time.RFC3339),
		Listing:  mode == "listing",
	}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = "Troll report " + now.UTC().Format("2006-01-02")
	}
	for _, a := range results {
		d.Items = append(d.Items, Item{
			Username:    a.Username,
			ProfileURL:  a.ProfileURL,
			IsOP:        a.IsOP,
			Trusted:     a.Trusted,
			Probability: a.Score.Probability,
			Tier:        a.Score.Tier,
			Emoji:       tierEmoji[a.Score.Tier],
			Registered:  a.Snapshot.RegistrationDateRaw,
			Threads:     a.Snapshot.ThreadCount,
			Messages:    a.Snapshot.MessageCount,
			PerDay:      a.Snapshot.MessagesPerDay,
			Days:        a.Snapshot.DaysRegistered,
			ThreadTitle: a.ThreadTitle,
			ThreadURL:   a.ThreadURL,
		})
		switch {
		case a.Trusted:
			d.Trusted++
		case a.Score.Tier == model.TierHigh:
			d.High++
		case a.Score.Tier == model.TierMedium:
			d.Medium++
		default:
			d.Low++
		}
	}
	sort.SliceStable(d.Items, func(i, j int) bool { return d.Items[i].Probability > d.Items[j].Probability })
	return d
}
