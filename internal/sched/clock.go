package sched

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HourIn returns the local clock hour (0..23) of t in loc.
func HourIn(t time.Time, loc *time.Location) int {
	return t.In(loc).Hour()
}

// WeekdayIn returns the local weekday name ("Monday".."Sunday") of t in loc.
func WeekdayIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Weekday().String()
}

// InstantFor constructs the absolute instant that reads hour:minute in loc on
// the civil date that base falls on in loc. DST transitions follow Go's
// time.Date resolution for the zone.
func InstantFor(base time.Time, hour, minute int, loc *time.Location) time.Time {
	y, m, d := base.In(loc).Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}

// DateIn returns the civil date key ("2006-01-02") of t in loc.
// Used to count a task's sessions per calendar day.
func DateIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// parseClock parses a "HH:MM" string. Malformed input yields the given
// defaults rather than an error; availability windows must always resolve.
func parseClock(s string, defHour, defMinute int) (int, int) {
	h, m, ok := splitClock(s)
	if !ok {
		return defHour, defMinute
	}
	return h, m
}

func splitClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// loadZone resolves an IANA zone name, defaulting empty input to UTC.
func loadZone(zone string) (*time.Location, error) {
	z := strings.TrimSpace(zone)
	if z == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(z)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", z, err)
	}
	return loc, nil
}
