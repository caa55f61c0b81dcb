package records

import (
	"regexp"
	"strings"
	"time"

	"visa-portal/internal/models"
)

var excelTextPattern = regexp.MustCompile(`^="(.*)"$`)

// CleanValue strips the spreadsheet text escape ="..." that Excel-friendly
// exports put around numeric-looking identifiers. Doubled quotes inside the
// formula are undone and the unwrapped value is trimmed, so `=" "` is blank.
func CleanValue(v string) string {
	v = strings.TrimSpace(v)
	if m := excelTextPattern.FindStringSubmatch(v); m != nil {
		return strings.TrimSpace(strings.ReplaceAll(m[1], `""`, `"`))
	}
	return v
}

// FormatAsText wraps v in the ="..." formula so spreadsheets keep leading
// zeros and long digit runs intact. Inner quotes are doubled as the formula
// string literal requires. CleanValue reverses it.
func FormatAsText(v string) string {
	if v == "" {
		return ""
	}
	return `="` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// ParseBool treats only "true" (any case) as set.
func ParseBool(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006",
	"1/2/2006 15:04",
	"2006/01/02",
	"2006/1/2",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"Mon Jan 2 2006",
}

// ParseDate accepts the date shapes that show up in spreadsheets and JSON.
// Anything unparsable is reported as not provided.
func ParseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// FormatDate renders YYYY-MM-DD, or "" for a missing date.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(models.DateLayout)
}
