package engine

import "time"

// DayOffset returns the number of whole calendar days from start to now,
// and false when now falls before the start date.
//
// Both sides are truncated to their calendar date (in their own location)
// before comparing, so the result is insensitive to what time of day the
// tick fires: DayOffset(start, start) == 0 for the entire first day.
func DayOffset(now, start time.Time) (int, bool) {
	n := midnight(now)
	s := midnight(start)
	if n.Before(s) {
		return 0, false
	}
	return int(n.Sub(s) / (24 * time.Hour)), true
}

// midnight maps a timestamp to its calendar date, normalized to UTC so
// subtraction counts exact days regardless of zone or DST shifts.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
