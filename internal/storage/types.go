package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("not found")
)

// Config configures storage. Driver is "sqlite" (or "sqlite3").
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// InstanceStatus tracks the lifecycle of a scheduled session.
type InstanceStatus string

const (
	InstanceScheduled InstanceStatus = "scheduled"
	InstanceCompleted InstanceStatus = "completed"
	InstanceMissed    InstanceStatus = "missed"
)

// Task is a journal entry with its child rows loaded.
type Task struct {
	ID             string        `json:"id"`
	UserID         string        `json:"-"`
	Description    string        `json:"description"`
	Priority       string        `json:"priority"`
	Status         string        `json:"status"`
	Deadline       *time.Time    `json:"deadline,omitempty"`
	Estimate       string        `json:"estimatedDuration"`
	SessionsPerDay int           `json:"sessionsPerDay"`
	SpacingMinutes int           `json:"spacingMinutes"`
	SkillLevel     int           `json:"skillLevel"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Chunks         []Chunk       `json:"chunks,omitempty"`
	Logs           []ProgressLog `json:"progressLogs,omitempty"`
	Instances      []Instance    `json:"instances,omitempty"`
}

// Chunk is one AI-suggested or hand-entered sub-step of a task.
type Chunk struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	Description string    `json:"description"`
	Estimate    string    `json:"estimatedDuration"`
	Position    int       `json:"position"`
	Done        bool      `json:"done"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProgressLog is one recorded work session on a task.
type ProgressLog struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"taskId"`
	StartedAt       time.Time `json:"startedAt"`
	DurationMinutes int       `json:"durationMinutes"`
	Note            string    `json:"note,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Instance is one scheduled work session.
type Instance struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"taskId"`
	UserID    string         `json:"-"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Status    InstanceStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Preferences is the per-user availability record.
type Preferences struct {
	UserID       string               `json:"-"`
	Hours        map[string][2]string `json:"availableHours"`
	AutoSchedule bool                 `json:"autoSchedule"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}
