package report

import (
	"strings"
	"time"
)

// ExpandVars performs simple placeholder substitutions for template strings
// used in config-provided or command-line text (e.g., the report title).
//
// Supported variables:
// - {.CurrentDate} => formatted as YYYY-MM-DD (UTC)
func ExpandVars(s string, now time.Time) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	date := now.UTC().Format("2006-01-02")
	return strings.ReplaceAll(s, "{.CurrentDate}", date)
}
