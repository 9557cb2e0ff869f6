package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vellum/internal/sched"
)

// LoadSchedulingContext builds the engine's input snapshot: tasks with their
// work history, all non-missed instances, and the user's preferences (nil
// when never configured).
func (s *Store) LoadSchedulingContext(ctx context.Context, userID string) ([]sched.Task, []sched.Instance, *sched.Preferences, error) {
	rows, err := s.ListTasks(ctx, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading tasks: %w", err)
	}

	tasks := make([]sched.Task, 0, len(rows))
	var existing []sched.Instance
	for _, r := range rows {
		t := sched.Task{
			ID:             r.ID,
			Description:    r.Description,
			Priority:       sched.Priority(r.Priority),
			Status:         sched.Status(r.Status),
			Deadline:       r.Deadline,
			Estimate:       r.Estimate,
			SessionsPerDay: r.SessionsPerDay,
			SpacingMinutes: r.SpacingMinutes,
		}
		for _, pl := range r.Logs {
			t.History = append(t.History, sched.WorkLog{Start: pl.StartedAt})
		}
		tasks = append(tasks, t)

		for _, inst := range r.Instances {
			if inst.Status == InstanceMissed {
				continue
			}
			existing = append(existing, sched.Instance{
				TaskID: inst.TaskID,
				Start:  inst.Start,
				End:    inst.End,
			})
		}
	}

	prefs, err := s.GetPreferences(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return tasks, existing, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading preferences: %w", err)
	}
	return tasks, existing, &sched.Preferences{
		Hours:        prefs.Hours,
		AutoSchedule: prefs.AutoSchedule,
	}, nil
}

// MarkOverdueInstancesMissed closes scheduled sessions whose end is already
// in the past.
func (s *Store) MarkOverdueInstancesMissed(ctx context.Context, userID string, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_instances SET status = ? WHERE user_id = ? AND status = ? AND end_at < ?`,
		InstanceMissed, userID, InstanceScheduled, timeStr(now),
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClearPendingInstances removes future not-yet-started scheduled sessions so
// a run can recompute them.
func (s *Store) ClearPendingInstances(ctx context.Context, userID string, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM task_instances WHERE user_id = ? AND status = ? AND start_at > ?`,
		userID, InstanceScheduled, timeStr(now),
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CommitInstances bulk-persists newly placed sessions.
func (s *Store) CommitInstances(ctx context.Context, userID string, instances []sched.Instance) error {
	if len(instances) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := timeStr(time.Now())
	for _, inst := range instances {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_instances(id, task_id, user_id, start_at, end_at, status, created_at)
			 VALUES(?,?,?,?,?,?,?)`,
			uuid.NewString(), inst.TaskID, userID, timeStr(inst.Start), timeStr(inst.End),
			InstanceScheduled, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AutoScheduleUsers lists users who opted into cron-triggered runs.
func (s *Store) AutoScheduleUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM user_preferences WHERE auto_schedule = 1 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, id)
	}
	return users, closeRows(rows)
}

// GetPreferences returns the user's availability record; ErrNotFound when
// never configured.
func (s *Store) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	var (
		hoursJSON string
		auto      bool
		updated   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT available_hours, auto_schedule, updated_at FROM user_preferences WHERE user_id = ?`,
		userID,
	).Scan(&hoursJSON, &auto, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Preferences{}, ErrNotFound
	}
	if err != nil {
		return Preferences{}, err
	}

	p := Preferences{UserID: userID, AutoSchedule: auto, UpdatedAt: parseTime(updated)}
	if err := json.Unmarshal([]byte(hoursJSON), &p.Hours); err != nil {
		return Preferences{}, fmt.Errorf("decoding available hours: %w", err)
	}
	return p, nil
}

// SetPreferences upserts the user's availability record.
func (s *Store) SetPreferences(ctx context.Context, p Preferences) error {
	if p.Hours == nil {
		p.Hours = map[string][2]string{}
	}
	hoursJSON, err := json.Marshal(p.Hours)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_preferences(user_id, available_hours, auto_schedule, updated_at)
		 VALUES(?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   available_hours = excluded.available_hours,
		   auto_schedule = excluded.auto_schedule,
		   updated_at = excluded.updated_at`,
		p.UserID, string(hoursJSON), p.AutoSchedule, timeStr(time.Now()),
	)
	return err
}

// CountAIUsageSince counts breakdown calls recorded at or after the cutoff.
func (s *Store) CountAIUsageSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_usage WHERE user_id = ? AND used_at >= ?`,
		userID, timeStr(since),
	).Scan(&n)
	return n, err
}

// RecordAIUsage logs one breakdown call.
func (s *Store) RecordAIUsage(ctx context.Context, userID string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_usage(user_id, used_at) VALUES(?,?)`, userID, timeStr(at))
	return err
}
