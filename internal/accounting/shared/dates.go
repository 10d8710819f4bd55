package shared

import "time"

// DateOnly truncates t to its calendar date in UTC. Entry dates carry no time.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NotAfter reports whether date falls on or before limit. A zero limit never matches.
func NotAfter(date, limit time.Time) bool {
	return !limit.IsZero() && !date.After(limit)
}
