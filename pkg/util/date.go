package util

import (
	"strconv"
	"time"
)

// DayLayout is the calendar-day key format.
const DayLayout = "2006-01-02"

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"20060102T150405",
	"20060102T1504",
	DayLayout,
}

// ParseTime tries RFC3339, compact vendor timestamps, day keys and unix
// seconds. Results are UTC. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// DayKey formats t as a UTC day key.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// DayOrToday returns day when set, otherwise now's UTC day key.
func DayOrToday(day string, now time.Time) string {
	if day != "" {
		return day
	}
	return DayKey(now)
}
