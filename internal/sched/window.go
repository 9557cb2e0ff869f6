package sched

import "time"

// Window is one day's availability interval. Start < End always holds.
type Window struct {
	Start time.Time
	End   time.Time
}

const (
	defaultWindowStart = "09:00"
	defaultWindowEnd   = "17:00"
)

// WindowFor resolves the availability window for the day that base falls on
// in loc. The weekday's configured [start, end] clock times become absolute
// instants; an end at or before the start wraps into the next calendar day
// (overnight window).
func WindowFor(base time.Time, prefs *Preferences, loc *time.Location) Window {
	startStr, endStr := defaultWindowStart, defaultWindowEnd
	if prefs != nil {
		if hours, ok := prefs.Hours[WeekdayIn(base, loc)]; ok {
			startStr, endStr = hours[0], hours[1]
		}
	}

	sh, sm := parseClock(startStr, 9, 0)
	eh, em := parseClock(endStr, 17, 0)

	start := InstantFor(base, sh, sm, loc)
	end := InstantFor(base, eh, em, loc)
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return Window{Start: start, End: end}
}
