package sched

import "time"

// HourScores is a histogram of historical session starts per local clock hour.
type HourScores [24]int

// Total is the cumulative number of history entries behind the histogram.
func (h HourScores) Total() int {
	n := 0
	for _, c := range h {
		n += c
	}
	return n
}

// AnalyzePeakHours buckets every task's work-log start hours in loc.
// All tasks contribute, including completed ones: finished work is exactly
// the signal the scorer wants.
func AnalyzePeakHours(tasks []Task, loc *time.Location) HourScores {
	var hs HourScores
	for _, t := range tasks {
		for _, lg := range t.History {
			if lg.Start.IsZero() {
				continue
			}
			hs[HourIn(lg.Start, loc)]++
		}
	}
	return hs
}

// hourScorer scores candidate slots by local hour.
//
// With coldStartThreshold or fewer total entries it returns flatScore for
// every hour, which keeps candidate order chronological instead of trusting
// a noisy histogram.
type hourScorer struct {
	counts HourScores
	flat   bool
}

func newHourScorer(tasks []Task, loc *time.Location) hourScorer {
	counts := AnalyzePeakHours(tasks, loc)
	return hourScorer{counts: counts, flat: counts.Total() <= coldStartThreshold}
}

func (s hourScorer) score(hour int) int {
	if s.flat {
		return flatScore
	}
	return s.counts[hour]
}
