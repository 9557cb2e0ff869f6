package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ListTasks returns the user's tasks with chunks, progress logs and
// scheduled instances attached, newest first.
func (s *Store) ListTasks(ctx context.Context, userID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, description, priority, status, deadline, estimate,
		        sessions_per_day, spacing_minutes, skill_level, created_at, updated_at
		 FROM tasks WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	index := map[string]int{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		index[t.ID] = len(tasks)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	if err := s.attachChildren(ctx, userID, tasks, index); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns one task with children; ErrNotFound when absent or owned
// by someone else.
func (s *Store) GetTask(ctx context.Context, userID, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, description, priority, status, deadline, estimate,
		        sessions_per_day, spacing_minutes, skill_level, created_at, updated_at
		 FROM tasks WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}
	tasks := []Task{t}
	if err := s.attachChildren(ctx, userID, tasks, map[string]int{t.ID: 0}); err != nil {
		return Task{}, err
	}
	return tasks[0], nil
}

// CreateTask inserts a task, filling ID, defaults and timestamps.
func (s *Store) CreateTask(ctx context.Context, t Task) (Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if t.Status == "" {
		t.Status = "idle"
	}
	if t.SessionsPerDay <= 0 {
		t.SessionsPerDay = 1
	}
	if t.SpacingMinutes <= 0 {
		t.SpacingMinutes = 60
	}
	if t.SkillLevel <= 0 {
		t.SkillLevel = 3
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, user_id, description, priority, status, deadline, estimate,
		                   sessions_per_day, spacing_minutes, skill_level, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.Description, t.Priority, t.Status, nullTime(t.Deadline), t.Estimate,
		t.SessionsPerDay, t.SpacingMinutes, t.SkillLevel, timeStr(t.CreatedAt), timeStr(t.UpdatedAt),
	)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// UpdateTask overwrites the mutable fields of a task the user owns.
func (s *Store) UpdateTask(ctx context.Context, t Task) (Task, error) {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET description = ?, priority = ?, status = ?, deadline = ?, estimate = ?,
		        sessions_per_day = ?, spacing_minutes = ?, skill_level = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.Description, t.Priority, t.Status, nullTime(t.Deadline), t.Estimate,
		t.SessionsPerDay, t.SpacingMinutes, t.SkillLevel, timeStr(t.UpdatedAt),
		t.ID, t.UserID,
	)
	if err != nil {
		return Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Task{}, ErrNotFound
	}
	return s.GetTask(ctx, t.UserID, t.ID)
}

// DeleteTask removes a task and, via cascade, its children.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddProgressLog records a work session against a task the user owns.
func (s *Store) AddProgressLog(ctx context.Context, userID string, pl ProgressLog) (ProgressLog, error) {
	if err := s.ownTask(ctx, userID, pl.TaskID); err != nil {
		return ProgressLog{}, err
	}
	if pl.ID == "" {
		pl.ID = uuid.NewString()
	}
	if pl.StartedAt.IsZero() {
		pl.StartedAt = time.Now().UTC()
	}
	pl.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress_logs(id, task_id, started_at, duration_minutes, note, created_at)
		 VALUES(?,?,?,?,?,?)`,
		pl.ID, pl.TaskID, timeStr(pl.StartedAt), pl.DurationMinutes, pl.Note, timeStr(pl.CreatedAt),
	)
	if err != nil {
		return ProgressLog{}, err
	}
	return pl, nil
}

// ReplaceChunks swaps a task's chunk list wholesale.
func (s *Store) ReplaceChunks(ctx context.Context, userID, taskID string, chunks []Chunk) ([]Chunk, error) {
	if err := s.ownTask(ctx, userID, taskID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE task_id = ?`, taskID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]Chunk, 0, len(chunks))
	for i, c := range chunks {
		c.ID = uuid.NewString()
		c.TaskID = taskID
		c.Position = i
		c.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(id, task_id, description, estimate, position, done, created_at)
			 VALUES(?,?,?,?,?,?,?)`,
			c.ID, c.TaskID, c.Description, c.Estimate, c.Position, c.Done, timeStr(c.CreatedAt),
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ownTask(ctx context.Context, userID, taskID string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (Task, error) {
	var (
		t                    Task
		deadline             sql.NullString
		createdAt, updatedAt string
	)
	err := r.Scan(&t.ID, &t.UserID, &t.Description, &t.Priority, &t.Status, &deadline,
		&t.Estimate, &t.SessionsPerDay, &t.SpacingMinutes, &t.SkillLevel, &createdAt, &updatedAt)
	if err != nil {
		return Task{}, err
	}
	t.Deadline = parseNullTime(deadline)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (s *Store) attachChildren(ctx context.Context, userID string, tasks []Task, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.task_id, c.description, c.estimate, c.position, c.done, c.created_at
		 FROM chunks c JOIN tasks t ON t.id = c.task_id
		 WHERE t.user_id = ? ORDER BY c.task_id, c.position`,
		userID,
	)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			c       Chunk
			created string
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Description, &c.Estimate, &c.Position, &c.Done, &created); err != nil {
			rows.Close()
			return err
		}
		c.CreatedAt = parseTime(created)
		if i, ok := index[c.TaskID]; ok {
			tasks[i].Chunks = append(tasks[i].Chunks, c)
		}
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT p.id, p.task_id, p.started_at, p.duration_minutes, p.note, p.created_at
		 FROM progress_logs p JOIN tasks t ON t.id = p.task_id
		 WHERE t.user_id = ? ORDER BY p.started_at`,
		userID,
	)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			pl               ProgressLog
			started, created string
		)
		if err := rows.Scan(&pl.ID, &pl.TaskID, &started, &pl.DurationMinutes, &pl.Note, &created); err != nil {
			rows.Close()
			return err
		}
		pl.StartedAt = parseTime(started)
		pl.CreatedAt = parseTime(created)
		if i, ok := index[pl.TaskID]; ok {
			tasks[i].Logs = append(tasks[i].Logs, pl)
		}
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, task_id, user_id, start_at, end_at, status, created_at
		 FROM task_instances WHERE user_id = ? ORDER BY start_at`,
		userID,
	)
	if err != nil {
		return err
	}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			rows.Close()
			return err
		}
		if i, ok := index[inst.TaskID]; ok {
			tasks[i].Instances = append(tasks[i].Instances, inst)
		}
	}
	return closeRows(rows)
}

func scanInstance(r rowScanner) (Instance, error) {
	var (
		inst                Instance
		start, end, created string
	)
	err := r.Scan(&inst.ID, &inst.TaskID, &inst.UserID, &start, &end, &inst.Status, &created)
	if err != nil {
		return Instance{}, err
	}
	inst.Start = parseTime(start)
	inst.End = parseTime(end)
	inst.CreatedAt = parseTime(created)
	return inst, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}
