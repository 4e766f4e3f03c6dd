package incident

import (
	"strings"
	"time"
)

// Layouts seen in collision exports: Open Data CSV (MM/DD/YYYY), ISO dates,
// Socrata timestamps and the short date format Excel renders by default.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04",
	"01/02/2006 03:04:05 PM",
	"1/2/2006 15:04",
	"01-02-06",
	"1/2/06",
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"15:04:05.000",
	"3:04 PM",
	"3:04:05 PM",
	"3:04PM",
	"3:04pm",
}

// ParseDate parses an occurrence date. Only the calendar day is kept.
func ParseDate(s string) (time.Time, bool) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseClock parses an occurrence time of day and returns hour and minute.
func ParseClock(s string) (hour, minute int, ok bool) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, 0, false
	}
	for _, l := range clockLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}
