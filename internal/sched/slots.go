package sched

import (
	"sort"
	"time"
)

// slot is an ephemeral placement candidate.
type slot struct {
	start time.Time
	score int
}

// slotsFor enumerates candidate start instants inside win at slotStep
// granularity, drops anything at or before now, and orders the rest by score
// descending. The sort is stable so equal scores keep chronological order
// and earlier slots are tried first.
func slotsFor(win Window, sc hourScorer, now time.Time, loc *time.Location) []slot {
	var out []slot
	for cur := win.Start; cur.Before(win.End); cur = cur.Add(slotStep) {
		if !cur.After(now) {
			continue
		}
		out = append(out, slot{start: cur, score: sc.score(HourIn(cur, loc))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}
