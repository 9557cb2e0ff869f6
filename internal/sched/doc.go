// Package sched implements vellum's scheduling engine.
//
// # Overview
//
// The engine turns a snapshot of (tasks, weekly availability preferences,
// already-committed instances, now, horizon) into a set of new, non-overlapping
// work sessions. It is a pure function: no I/O, no clocks, no randomness.
// Service wraps it with the read/reconcile/commit phases against the store.
//
// # Placement
//
// Eligible tasks are sorted by priority weight, nearest deadline, then task ID
// (all stable), and placed greedily: for each task and each day of the horizon,
// 15-minute candidate start slots inside the day's availability window are
// scored by historical peak hours and tried best-first. A candidate is
// committed only if it fits before the task's deadline, ends inside the
// window, does not overlap any committed session of any task, and keeps the
// task's minimum spacing to its other sessions. The first fit wins; there is
// no backtracking. Given identical input, two runs produce identical output.
//
// # Peak hours
//
// Candidate scores come from a 24-bucket histogram of historical session
// start hours. With 60 or fewer history entries overall the scorer returns a
// flat constant instead, so sparse history cannot skew placement; flat scores
// make candidates effectively chronological.
package sched
