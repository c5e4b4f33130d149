package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"smart-scheduler/internal/db"
	"smart-scheduler/internal/scheduler"
)

const defaultDurationMinutes = 60

const taskSelect = `
	SELECT t.id, COALESCE(t.project_id, 0), COALESCE(p.name, ''),
		t.title, t.description, t.duration_minutes, t.status, t.priority,
		t.scheduled_start, t.scheduled_end, t.started_at, t.completed_at, t.created_at
	FROM tasks t
	LEFT JOIN projects p ON p.id = t.project_id
`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	ProjectID int64
	Status    scheduler.Status
}

func (s *Store) ListTasks(ctx context.Context, owner int, f TaskFilter) ([]Task, error) {
	query := taskSelect + ` WHERE t.owner_id = ?`
	args := []any{owner}
	if f.ProjectID != 0 {
		query += ` AND t.project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		query += ` AND t.status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY t.priority ASC, t.id ASC`

	tasks, err := s.queryTasks(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.attachDependencies(ctx, s.db, owner, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) GetTask(ctx context.Context, owner int, id int64) (Task, error) {
	return s.getTask(ctx, s.db, owner, id)
}

func (s *Store) getTask(ctx context.Context, q querier, owner int, id int64) (Task, error) {
	tasks, err := s.queryTasks(ctx, q, taskSelect+` WHERE t.owner_id = ? AND t.id = ?`, owner, id)
	if err != nil {
		return Task{}, err
	}
	if len(tasks) == 0 {
		return Task{}, ErrNotFound
	}
	if err := s.attachDependencies(ctx, q, owner, tasks); err != nil {
		return Task{}, err
	}
	return tasks[0], nil
}

func (s *Store) CreateTask(ctx context.Context, owner int, in TaskInput) (Task, error) {
	in, err := normalizeTaskInput(in)
	if err != nil {
		return Task{}, err
	}
	now := s.Now()

	var id int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkRefs(ctx, tx, owner, 0, in); err != nil {
			return err
		}
		started, completed := statusStamps(in.Status, time.Time{}, time.Time{}, now)
		err := tx.QueryRowContext(ctx, s.q(`
			INSERT INTO tasks (owner_id, project_id, title, description, duration_minutes,
				status, priority, started_at, completed_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`), owner, db.NullID(in.ProjectID), in.Title, in.Description, in.DurationMinutes,
			string(in.Status), in.Priority, db.NullTime(started), db.NullTime(completed), db.FormatTime(now),
		).Scan(&id)
		if err != nil {
			return err
		}
		if err := s.replaceDependencies(ctx, tx, id, in.Dependencies); err != nil {
			return err
		}
		return s.insertStatusUpdate(ctx, tx, id, in.Status, "created", now)
	})
	if err != nil {
		return Task{}, err
	}
	s.log.Debug().Str("op", "insert").Str("table", "tasks").Int64("id", id).Msg("sql")
	return s.GetTask(ctx, owner, id)
}

// UpdateTask replaces every field of the task. A status change is recorded
// in the status history like SetTaskStatus.
func (s *Store) UpdateTask(ctx context.Context, owner int, id int64, in TaskInput) (Task, error) {
	in, err := normalizeTaskInput(in)
	if err != nil {
		return Task{}, err
	}
	now := s.Now()

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.getTask(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		if err := s.checkRefs(ctx, tx, owner, id, in); err != nil {
			return err
		}
		started, completed := statusStamps(in.Status, deref(cur.StartedAt), deref(cur.CompletedAt), now)
		_, err = tx.ExecContext(ctx, s.q(`
			UPDATE tasks
			SET project_id = ?, title = ?, description = ?, duration_minutes = ?,
				status = ?, priority = ?, started_at = ?, completed_at = ?
			WHERE owner_id = ? AND id = ?
		`), db.NullID(in.ProjectID), in.Title, in.Description, in.DurationMinutes,
			string(in.Status), in.Priority, db.NullTime(started), db.NullTime(completed), owner, id)
		if err != nil {
			return err
		}
		if err := s.replaceDependencies(ctx, tx, id, in.Dependencies); err != nil {
			return err
		}
		if cur.Status != in.Status {
			return s.insertStatusUpdate(ctx, tx, id, in.Status, "", now)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return s.GetTask(ctx, owner, id)
}

// DeleteTask removes the task and every dependency edge that points at it.
func (s *Store) DeleteTask(ctx context.Context, owner int, id int64) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE owner_id = ? AND id = ?`), owner, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx, s.q(`DELETE FROM task_dependencies WHERE prerequisite_id = ?`), id)
		return err
	})
}

// SetTaskStatus moves a task to status, stamps started_at/completed_at and
// appends a status update. It returns the updated task and the previous
// status.
func (s *Store) SetTaskStatus(ctx context.Context, owner int, id int64, status scheduler.Status, notes string) (Task, scheduler.Status, error) {
	if !status.Valid() {
		return Task{}, "", invalidf("unknown status %q", status)
	}
	now := s.Now()

	var prev scheduler.Status
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.getTask(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		prev = cur.Status
		started, completed := statusStamps(status, deref(cur.StartedAt), deref(cur.CompletedAt), now)
		_, err = tx.ExecContext(ctx, s.q(`
			UPDATE tasks SET status = ?, started_at = ?, completed_at = ?
			WHERE owner_id = ? AND id = ?
		`), string(status), db.NullTime(started), db.NullTime(completed), owner, id)
		if err != nil {
			return err
		}
		return s.insertStatusUpdate(ctx, tx, id, status, strings.TrimSpace(notes), now)
	})
	if err != nil {
		return Task{}, "", err
	}
	t, err := s.GetTask(ctx, owner, id)
	return t, prev, err
}

// ListStatusUpdates returns the status history of a task, oldest first.
func (s *Store) ListStatusUpdates(ctx context.Context, owner int, taskID int64) ([]StatusUpdate, error) {
	if _, err := s.GetTask(ctx, owner, taskID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, task_id, status, notes, created_at
		FROM status_updates
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`), taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StatusUpdate{}
	for rows.Next() {
		var (
			u       StatusUpdate
			created sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.TaskID, &u.Status, &u.Notes, &created); err != nil {
			return nil, err
		}
		if u.CreatedAt, err = db.ParseTime(created); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) insertStatusUpdate(ctx context.Context, q querier, taskID int64, status scheduler.Status, notes string, now time.Time) error {
	_, err := q.ExecContext(ctx, s.q(`
		INSERT INTO status_updates (task_id, status, notes, created_at)
		VALUES (?, ?, ?, ?)
	`), taskID, string(status), notes, db.FormatTime(now))
	return err
}

// statusStamps derives started_at and completed_at for a task entering
// status. Work that starts keeps its first start; leaving Completed clears
// the completion instant.
func statusStamps(status scheduler.Status, started, completed, now time.Time) (time.Time, time.Time) {
	switch status {
	case scheduler.StatusInProgress:
		if started.IsZero() {
			started = now
		}
		completed = time.Time{}
	case scheduler.StatusCompleted:
		if started.IsZero() {
			started = now
		}
		if completed.IsZero() {
			completed = now
		}
	default:
		completed = time.Time{}
	}
	return started, completed
}

func normalizeTaskInput(in TaskInput) (TaskInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return in, invalidf("title required")
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = defaultDurationMinutes
	}
	if in.DurationMinutes < 0 {
		return in, invalidf("duration_minutes must be positive")
	}
	if in.Priority == 0 {
		in.Priority = defaultPriority
	}
	if !validPriority(in.Priority) {
		return in, invalidf("priority must be 1, 2 or 3")
	}
	if in.Status == "" {
		in.Status = scheduler.StatusNotStarted
	}
	if !in.Status.Valid() {
		return in, invalidf("unknown status %q", in.Status)
	}

	seen := map[int64]bool{}
	deps := make([]int64, 0, len(in.Dependencies))
	for _, d := range in.Dependencies {
		if d <= 0 {
			return in, invalidf("dependency id %d", d)
		}
		if !seen[d] {
			seen[d] = true
			deps = append(deps, d)
		}
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	in.Dependencies = deps
	return in, nil
}

// checkRefs verifies that the project and every prerequisite belong to
// owner. self is the task being updated (0 on create).
func (s *Store) checkRefs(ctx context.Context, q querier, owner int, self int64, in TaskInput) error {
	if in.ProjectID != 0 {
		var one int
		err := q.QueryRowContext(ctx, s.q(`SELECT 1 FROM projects WHERE owner_id = ? AND id = ?`), owner, in.ProjectID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return invalidf("project %d not found", in.ProjectID)
		}
		if err != nil {
			return err
		}
	}
	if len(in.Dependencies) == 0 {
		return nil
	}

	args := []any{owner}
	marks := make([]string, 0, len(in.Dependencies))
	for _, d := range in.Dependencies {
		if d == self {
			return invalidf("task cannot depend on itself")
		}
		args = append(args, d)
		marks = append(marks, "?")
	}
	var n int
	err := q.QueryRowContext(ctx, s.q(fmt.Sprintf(
		`SELECT COUNT(*) FROM tasks WHERE owner_id = ? AND id IN (%s)`, strings.Join(marks, ", "),
	)), args...).Scan(&n)
	if err != nil {
		return err
	}
	if n != len(in.Dependencies) {
		return invalidf("unknown dependency")
	}
	return nil
}

func (s *Store) replaceDependencies(ctx context.Context, q querier, taskID int64, deps []int64) error {
	if _, err := q.ExecContext(ctx, s.q(`DELETE FROM task_dependencies WHERE task_id = ?`), taskID); err != nil {
		return err
	}
	for _, d := range deps {
		if _, err := q.ExecContext(ctx, s.q(`
			INSERT INTO task_dependencies (task_id, prerequisite_id) VALUES (?, ?)
		`), taskID, d); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) queryTasks(ctx context.Context, q querier, query string, args ...any) ([]Task, error) {
	rows, err := q.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		var (
			t                           Task
			schedStart, schedEnd        sql.NullString
			started, completed, created sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.ProjectName,
			&t.Title, &t.Description, &t.DurationMinutes, &t.Status, &t.Priority,
			&schedStart, &schedEnd, &started, &completed, &created); err != nil {
			return nil, err
		}
		times := []struct {
			src sql.NullString
			dst **time.Time
		}{
			{schedStart, &t.ScheduledStart},
			{schedEnd, &t.ScheduledEnd},
			{started, &t.StartedAt},
			{completed, &t.CompletedAt},
		}
		for _, tm := range times {
			v, err := db.ParseTime(tm.src)
			if err != nil {
				return nil, err
			}
			*tm.dst = timePtr(v)
		}
		if t.CreatedAt, err = db.ParseTime(created); err != nil {
			return nil, err
		}
		t.PriorityLabel = scheduler.PriorityLabel(t.Priority)
		t.Dependencies = []int64{}
		out = append(out, t)
	}
	return out, rows.Err()
}

// attachDependencies fills Dependencies for tasks from one query over the
// owner's edges.
func (s *Store) attachDependencies(ctx context.Context, q querier, owner int, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	rows, err := q.QueryContext(ctx, s.q(`
		SELECT d.task_id, d.prerequisite_id
		FROM task_dependencies d
		JOIN tasks t ON t.id = d.task_id
		WHERE t.owner_id = ?
		ORDER BY d.task_id ASC, d.prerequisite_id ASC
	`), owner)
	if err != nil {
		return err
	}
	defer rows.Close()

	deps := map[int64][]int64{}
	for rows.Next() {
		var taskID, prereq int64
		if err := rows.Scan(&taskID, &prereq); err != nil {
			return err
		}
		deps[taskID] = append(deps[taskID], prereq)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range tasks {
		if d, ok := deps[tasks[i].ID]; ok {
			tasks[i].Dependencies = d
		}
	}
	return nil
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
