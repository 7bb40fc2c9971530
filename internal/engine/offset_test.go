package engine

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDayOffset(t *testing.T) {
	t.Parallel()
	start := date(2024, time.January, 1)

	tests := []struct {
		name string
		now  time.Time
		want int
		ok   bool
	}{
		{name: "same day", now: start, want: 0, ok: true},
		{name: "same day evening", now: time.Date(2024, time.January, 1, 23, 59, 0, 0, time.UTC), want: 0, ok: true},
		{name: "next day midnight", now: date(2024, time.January, 2), want: 1, ok: true},
		{name: "next day early", now: time.Date(2024, time.January, 2, 0, 0, 1, 0, time.UTC), want: 1, ok: true},
		{name: "five days", now: date(2024, time.January, 6), want: 5, ok: true},
		{name: "across month", now: date(2024, time.February, 1), want: 31, ok: true},
		{name: "across leap day", now: date(2024, time.March, 1), want: 60, ok: true},
		{name: "before start", now: date(2023, time.December, 31), ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DayOffset(tt.now, start)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("offset = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDayOffsetIgnoresTimeOfDay(t *testing.T) {
	t.Parallel()
	// A start date recorded late in the evening must not shift the series.
	start := time.Date(2024, time.June, 10, 23, 45, 0, 0, time.UTC)
	now := time.Date(2024, time.June, 11, 0, 5, 0, 0, time.UTC)

	got, ok := DayOffset(now, start)
	if !ok || got != 1 {
		t.Fatalf("offset = %d (ok=%v), want 1", got, ok)
	}
}

func TestDayOffsetMonotonic(t *testing.T) {
	t.Parallel()
	start := date(2024, time.January, 1)
	prev := -1
	for d := 0; d < 40; d++ {
		got, ok := DayOffset(start.AddDate(0, 0, d), start)
		if !ok {
			t.Fatalf("day %d: unexpected !ok", d)
		}
		if got <= prev {
			t.Fatalf("day %d: offset %d not greater than previous %d", d, got, prev)
		}
		prev = got
	}
}

func TestDayOffsetDifferentZones(t *testing.T) {
	t.Parallel()
	// Calendar dates are compared in each timestamp's own location.
	est := time.FixedZone("EST", -5*3600)
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	// 2024-03-03 22:00 EST is 2024-03-04 03:00 UTC, but locally still March 3.
	now := time.Date(2024, time.March, 3, 22, 0, 0, 0, est)

	got, ok := DayOffset(now, start)
	if !ok || got != 2 {
		t.Fatalf("offset = %d (ok=%v), want 2", got, ok)
	}
}
