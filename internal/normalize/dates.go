package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Numeric encodings, tried in order. The portal mostly sends ISO timestamps;
// annotations and older records use day-first forms.
var datePatterns = []struct {
	re               *regexp.Regexp
	day, month, year int // submatch indexes
}{
	{regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})\b`), 1, 2, 3},
	{regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:T|\b)`), 3, 2, 1},
	{regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})\b`), 1, 2, 3},
}

// Generic layouts for anything the patterns above miss.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02.01.2006",
	"02-Jan-2006",
	"02 Jan 2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate reads the date encodings seen on the portal and returns the
// calendar date at midnight UTC. ok is false when nothing matched or the
// date does not exist (31/02/2020). It never panics.
func ParseDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))
	if s == "" {
		return time.Time{}, false
	}

	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[p.day])
		month, _ := strconv.Atoi(m[p.month])
		year, _ := strconv.Atoi(m[p.year])
		return calendarDate(year, month, day)
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// ParseDatePtr is ParseDate for nullable columns.
func ParseDatePtr(s string) *time.Time {
	if t, ok := ParseDate(s); ok {
		return &t
	}
	return nil
}

func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow; reject dates that rolled over
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
