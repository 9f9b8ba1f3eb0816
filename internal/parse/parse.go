// Package parse turns the free text of forum profile pages into typed values.
package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fc-troll-detector/internal/model"
)

// Labels of the activity counters on a profile page (singular stem).
const (
	LabelThreads  = "Hilo"
	LabelMessages = "Mensaje"
)

var months = map[string]time.Month{
	"ene": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dic": time.December,
}

var registrationRe = regexp.MustCompile(`(?i)Desde\s*(\d{1,2}-[a-z]{3}-\d{4})`)

// FindRegistrationText returns the DD-mon-YYYY token that follows the
// "Desde" marker in a profile's text.
func FindRegistrationText(fullText string) (string, bool) {
	m := registrationRe.FindStringSubmatch(fullText)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseRegistrationDate parses "DD-mon-YYYY" into local midnight of that day.
func ParseRegistrationDate(text string) (time.Time, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(text)), "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("registration date %q: want 3 parts, got %d: %w", text, len(parts), model.ErrParse)
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("registration date %q: day: %w", text, model.ErrParse)
	}
	month, ok := months[parts[1]]
	if !ok {
		return time.Time{}, fmt.Errorf("registration date %q: unknown month %q: %w", text, parts[1], model.ErrParse)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("registration date %q: year: %w", text, model.ErrParse)
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.Local)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, fmt.Errorf("registration date %q: day out of range: %w", text, model.ErrParse)
	}
	return d, nil
}

// DaysSince is the absolute distance between date and now in whole days,
// rounded up. Scoring thresholds depend on this exact rounding.
func DaysSince(date, now time.Time) int {
	diff := now.Sub(date)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

var (
	threadsRe  = counterPattern(LabelThreads)
	messagesRe = counterPattern(LabelMessages)
)

// counterPattern matches a number followed by label, optionally plural.
func counterPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)([\d.,]+)\s*` + regexp.QuoteMeta(strings.TrimSuffix(label, "s")) + `s?`)
}

func counterRe(label string) *regexp.Regexp {
	switch label {
	case LabelThreads:
		return threadsRe
	case LabelMessages:
		return messagesRe
	}
	return counterPattern(label)
}

// ExtractCounter reads the number written right before label, e.g.
// "1.234 Mensajes". Grouping separators are dropped. A missing or
// unreadable counter is 0.
func ExtractCounter(fullText, label string) int {
	m := counterRe(label).FindStringSubmatch(fullText)
	if m == nil {
		return 0
	}
	digits := strings.NewReplacer(".", "", ",", "").Replace(m[1])
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
