package sched

import (
	"testing"
	"time"
)

func logsAt(day time.Time, hour, n int) []WorkLog {
	logs := make([]WorkLog, 0, n)
	for i := 0; i < n; i++ {
		logs = append(logs, WorkLog{Start: day.Add(time.Duration(hour)*time.Hour + time.Duration(i)*time.Minute)})
	}
	return logs
}

func TestAnalyzePeakHours(t *testing.T) {
	t.Parallel()
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "a", History: logsAt(day, 9, 3)},
		{ID: "b", History: logsAt(day, 14, 2)},
		{ID: "c", History: []WorkLog{{}}}, // zero start is skipped
	}

	hs := AnalyzePeakHours(tasks, time.UTC)
	if hs[9] != 3 || hs[14] != 2 {
		t.Fatalf("buckets = h9:%d h14:%d, want 3 and 2", hs[9], hs[14])
	}
	if hs.Total() != 5 {
		t.Fatalf("Total = %d, want 5", hs.Total())
	}
}

func TestHourScorerColdStart(t *testing.T) {
	t.Parallel()
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	t.Run("sparse history scores flat", func(t *testing.T) {
		t.Parallel()
		sc := newHourScorer([]Task{{ID: "a", History: logsAt(day, 10, 60)}}, time.UTC)
		if !sc.flat {
			t.Fatal("60 entries must still be below the personalization gate")
		}
		if got := sc.score(10); got != flatScore {
			t.Fatalf("score(10) = %d, want flat %d", got, flatScore)
		}
		if got := sc.score(3); got != flatScore {
			t.Fatalf("score(3) = %d, want flat %d", got, flatScore)
		}
	})

	t.Run("enough history personalizes", func(t *testing.T) {
		t.Parallel()
		sc := newHourScorer([]Task{{ID: "a", History: logsAt(day, 10, 61)}}, time.UTC)
		if sc.flat {
			t.Fatal("61 entries must enable personalization")
		}
		if got := sc.score(10); got != 61 {
			t.Fatalf("score(10) = %d, want 61", got)
		}
		if got := sc.score(3); got != 0 {
			t.Fatalf("score(3) = %d, want 0", got)
		}
	})
}

func TestSlotsForOrderAndNowFilter(t *testing.T) {
	t.Parallel()
	win := Window{
		Start: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	now := time.Date(2026, 1, 5, 9, 15, 0, 0, time.UTC)

	slots := slotsFor(win, hourScorer{flat: true}, now, time.UTC)
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2 (09:30, 09:45)", len(slots))
	}
	// A slot exactly at now is excluded; flat scores keep chronological order.
	if want := win.Start.Add(30 * time.Minute); !slots[0].start.Equal(want) {
		t.Fatalf("first slot = %v, want %v", slots[0].start, want)
	}
	if want := win.Start.Add(45 * time.Minute); !slots[1].start.Equal(want) {
		t.Fatalf("second slot = %v, want %v", slots[1].start, want)
	}
}
