package sched

import (
	"testing"
	"time"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q): %v", name, err)
	}
	return loc
}

func TestHourAndWeekdayInZone(t *testing.T) {
	t.Parallel()
	ny := mustZone(t, "America/New_York")

	// 2026-01-05 13:00 UTC is 08:00 Monday in New York (EST, UTC-5).
	instant := time.Date(2026, 1, 5, 13, 0, 0, 0, time.UTC)
	if got := HourIn(instant, ny); got != 8 {
		t.Fatalf("HourIn = %d, want 8", got)
	}
	if got := WeekdayIn(instant, ny); got != "Monday" {
		t.Fatalf("WeekdayIn = %s, want Monday", got)
	}
}

func TestInstantForReadsLocalClock(t *testing.T) {
	t.Parallel()
	ny := mustZone(t, "America/New_York")

	base := time.Date(2026, 1, 5, 13, 0, 0, 0, time.UTC)
	got := InstantFor(base, 9, 30, ny)

	if HourIn(got, ny) != 9 || got.In(ny).Minute() != 30 {
		t.Fatalf("InstantFor reads %02d:%02d in zone, want 09:30", HourIn(got, ny), got.In(ny).Minute())
	}
	if want := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("InstantFor = %v, want %v", got, want)
	}
}

func TestParseClockFallsBack(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw          string
		wantH, wantM int
	}{
		{"08:45", 8, 45},
		{"23:59", 23, 59},
		{"24:00", 9, 0},
		{"9", 9, 0},
		{"x:y", 9, 0},
		{"", 9, 0},
	}
	for _, tt := range tests {
		h, m := parseClock(tt.raw, 9, 0)
		if h != tt.wantH || m != tt.wantM {
			t.Fatalf("parseClock(%q) = %d:%d, want %d:%d", tt.raw, h, m, tt.wantH, tt.wantM)
		}
	}
}

func TestWindowForDefaultsAndOvernight(t *testing.T) {
	t.Parallel()

	// Monday in UTC.
	base := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	t.Run("missing day defaults to 09:00-17:00", func(t *testing.T) {
		t.Parallel()
		win := WindowFor(base, &Preferences{Hours: map[string][2]string{}}, time.UTC)
		if want := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC); !win.Start.Equal(want) {
			t.Fatalf("Start = %v, want %v", win.Start, want)
		}
		if want := time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC); !win.End.Equal(want) {
			t.Fatalf("End = %v, want %v", win.End, want)
		}
	})

	t.Run("overnight window wraps past midnight", func(t *testing.T) {
		t.Parallel()
		prefs := &Preferences{Hours: map[string][2]string{
			"Monday": {"22:00", "02:00"},
		}}
		win := WindowFor(base, prefs, time.UTC)
		if want := time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC); !win.Start.Equal(want) {
			t.Fatalf("Start = %v, want %v", win.Start, want)
		}
		if want := time.Date(2026, 1, 6, 2, 0, 0, 0, time.UTC); !win.End.Equal(want) {
			t.Fatalf("End = %v, want %v", win.End, want)
		}
		if !win.Start.Before(win.End) {
			t.Fatal("window contract violated: Start must precede End")
		}
	})

	t.Run("zoned window", func(t *testing.T) {
		t.Parallel()
		ny := mustZone(t, "America/New_York")
		prefs := &Preferences{Hours: map[string][2]string{
			"Monday": {"09:00", "17:00"},
		}}
		win := WindowFor(time.Date(2026, 1, 5, 13, 0, 0, 0, time.UTC), prefs, ny)
		if want := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC); !win.Start.Equal(want) {
			t.Fatalf("Start = %v, want %v (09:00 EST)", win.Start, want)
		}
	})
}
