package sched

import (
	"errors"
	"time"
)

var (
	// ErrNoPreferences aborts a run: without configured availability there
	// are no windows to place into.
	ErrNoPreferences = errors.New("preferences not configured: set your available hours first")

	// ErrRunInProgress guards against concurrent runs for the same user.
	ErrRunInProgress = errors.New("scheduling run already in progress for this user")
)

// Priority orders tasks during placement.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// weight maps a priority to its sort weight. Unknown values sort last.
func (p Priority) weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Status of a task. Completed and archived tasks are never scheduled.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Schedulable reports whether a task in this status may receive sessions.
func (s Status) Schedulable() bool {
	return s != StatusCompleted && s != StatusArchived
}

// WorkLog is one historical work session start, used for peak-hour scoring.
type WorkLog struct {
	Start time.Time
}

// Task is the engine's read-only view of a journal task.
type Task struct {
	ID          string
	Description string
	Priority    Priority
	Status      Status

	// Deadline, if set, is a hard upper bound for session ends.
	Deadline *time.Time

	// Estimate is a free-form duration expression ("45", "90m", "1h 30m").
	// Unparseable input falls back to 60 minutes.
	Estimate string

	// SessionsPerDay is the repetition target per calendar day (min 1).
	SessionsPerDay int

	// SpacingMinutes is the minimum gap between two session starts of this
	// task. Zero means the default of 60.
	SpacingMinutes int

	History []WorkLog
}

// Preferences holds the user's weekly availability.
type Preferences struct {
	// Hours maps a weekday name ("Monday".."Sunday") to a [start, end] pair
	// of "HH:MM" clock times in the scheduling zone. If end <= start the
	// window wraps past midnight. Missing days default to 09:00-17:00.
	Hours map[string][2]string

	// AutoSchedule opts the user into cron-triggered runs.
	AutoSchedule bool
}

// Instance is one committed work session.
type Instance struct {
	TaskID string
	Start  time.Time
	End    time.Time
}

// Input is the full snapshot a scheduling run operates on.
type Input struct {
	Tasks       []Task
	Preferences *Preferences

	// Existing holds all committed instances of all tasks, from prior runs
	// and manual placements. They seed the occupancy and spacing state.
	Existing []Instance

	Now  time.Time
	Days int    // horizon in days; clamped to [1, 90], 0 means DefaultDays
	Zone string // IANA zone; empty means UTC
}

// Unschedulable identifies a task that received zero sessions anywhere in
// the horizon. It is an expected outcome, not an error.
type Unschedulable struct {
	TaskID      string `json:"taskId"`
	Description string `json:"description,omitempty"`
}

// Result is the output of one scheduling run.
type Result struct {
	Instances      []Instance      `json:"newInstances"`
	ScheduledCount int             `json:"scheduledCount"`
	Unschedulable  []Unschedulable `json:"unschedulableTasks"`
}

const (
	// DefaultDays is the horizon used when a request does not specify one.
	DefaultDays = 3

	minDays = 1
	maxDays = 90

	// slotStep is the candidate granularity inside a window.
	slotStep = 15 * time.Minute

	defaultEstimateMinutes = 60
	defaultSpacingMinutes  = 60
	defaultSessionsPerDay  = 1

	// coldStartThreshold gates peak-hour personalization: at or below this
	// many total history entries every hour scores flatScore.
	coldStartThreshold = 60
	flatScore          = 5
)

// ClampDays bounds a requested horizon, mapping zero to the default.
func ClampDays(days int) int {
	if days == 0 {
		return DefaultDays
	}
	if days < minDays {
		return minDays
	}
	if days > maxDays {
		return maxDays
	}
	return days
}
