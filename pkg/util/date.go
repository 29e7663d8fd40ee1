package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// WeekMinute returns minutes elapsed since Sunday 00:00 UTC.
func WeekMinute(t time.Time) int {
	t = t.UTC()
	return int(t.Weekday())*24*60 + t.Hour()*60 + t.Minute()
}

// InWeeklyWindow reports whether t (UTC) falls in [start, end) where both
// bounds are given as weekday + hour. Windows may wrap across Saturday/Sunday.
func InWeeklyWindow(t time.Time, startDay time.Weekday, startHour int, endDay time.Weekday, endHour int) bool {
	const week = 7 * 24 * 60
	start := int(startDay)*24*60 + startHour*60
	end := int(endDay)*24*60 + endHour*60
	m := WeekMinute(t)
	if start == end {
		return false
	}
	if start < end {
		return m >= start && m < end
	}
	// wraps past Saturday midnight
	return m >= start || m < end%week
}
