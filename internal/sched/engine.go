package sched

import (
	"sort"
	"time"
)

// Schedule computes new work sessions for the given snapshot.
//
// It is deterministic: identical input (including Now) produces identical
// output. All ordering steps use stable sorts and no map iteration leaks
// into results. The only error conditions are missing preferences and an
// unresolvable timezone; a task that cannot be placed is reported in
// Result.Unschedulable instead.
func Schedule(in Input) (Result, error) {
	if in.Preferences == nil {
		return Result{}, ErrNoPreferences
	}
	loc, err := loadZone(in.Zone)
	if err != nil {
		return Result{}, err
	}
	days := ClampDays(in.Days)

	eligible := make([]Task, 0, len(in.Tasks))
	for _, t := range in.Tasks {
		if t.Status.Schedulable() {
			eligible = append(eligible, t)
		}
	}
	sortTasks(eligible)

	// Peak hours come from every task's history, eligible or not.
	scorer := newHourScorer(in.Tasks, loc)

	// One window per day offset, anchored on Now.
	windows := make([]Window, days)
	for d := 0; d < days; d++ {
		windows[d] = WindowFor(in.Now.AddDate(0, 0, d), in.Preferences, loc)
	}

	occupied := newOccupancy(in.Existing)

	// Per-task session starts (spacing) and per-task-per-day counts
	// (repetition targets), seeded from existing instances.
	taskStarts := make(map[string][]time.Time)
	dayCounts := make(map[dayKey]int)
	for _, inst := range in.Existing {
		taskStarts[inst.TaskID] = append(taskStarts[inst.TaskID], inst.Start)
		dayCounts[dayKey{inst.TaskID, DateIn(inst.Start, loc)}]++
	}

	var placed []Instance
	for _, t := range eligible {
		duration := time.Duration(ParseEstimate(t.Estimate)) * time.Minute
		spacing := time.Duration(t.SpacingMinutes) * time.Minute
		if spacing <= 0 {
			spacing = defaultSpacingMinutes * time.Minute
		}
		reps := t.SessionsPerDay
		if reps < defaultSessionsPerDay {
			reps = defaultSessionsPerDay
		}

		for d := 0; d < days; d++ {
			win := windows[d]
			key := dayKey{t.ID, DateIn(win.Start, loc)}
			if dayCounts[key] >= reps {
				continue
			}

			for _, cand := range slotsFor(win, scorer, in.Now, loc) {
				if dayCounts[key] >= reps {
					break
				}
				end := cand.start.Add(duration)
				if t.Deadline != nil && end.After(*t.Deadline) {
					continue
				}
				if end.After(win.End) {
					continue
				}
				if occupied.overlaps(cand.start, end) {
					continue
				}
				if tooClose(taskStarts[t.ID], cand.start, spacing) {
					continue
				}

				inst := Instance{TaskID: t.ID, Start: cand.start, End: end}
				occupied.add(inst)
				taskStarts[t.ID] = append(taskStarts[t.ID], cand.start)
				dayCounts[key]++
				placed = append(placed, inst)
			}
		}
	}

	// A task is unschedulable only with zero sessions overall, existing or
	// new; partial fulfillment does not count.
	var unsched []Unschedulable
	for _, t := range eligible {
		if len(taskStarts[t.ID]) == 0 {
			unsched = append(unsched, Unschedulable{TaskID: t.ID, Description: t.Description})
		}
	}

	return Result{
		Instances:      placed,
		ScheduledCount: len(placed),
		Unschedulable:  unsched,
	}, nil
}

type dayKey struct {
	taskID string
	day    string
}

// sortTasks orders tasks for placement: priority weight descending, nearest
// deadline first (no deadline sorts last), then task ID ascending as the
// final deterministic tie-break.
func sortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if wa, wb := a.Priority.weight(), b.Priority.weight(); wa != wb {
			return wa > wb
		}
		switch {
		case a.Deadline != nil && b.Deadline != nil:
			if !a.Deadline.Equal(*b.Deadline) {
				return a.Deadline.Before(*b.Deadline)
			}
		case a.Deadline != nil:
			return true
		case b.Deadline != nil:
			return false
		}
		return a.ID < b.ID
	})
}

// tooClose reports whether start is within spacing of any prior start of the
// same task. This is an absolute-difference check on starts, not interval
// overlap; a gap of exactly spacing is allowed.
func tooClose(starts []time.Time, start time.Time, spacing time.Duration) bool {
	for _, s := range starts {
		diff := start.Sub(s)
		if diff < 0 {
			diff = -diff
		}
		if diff < spacing {
			return true
		}
	}
	return false
}
