package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smart-scheduler/internal/db"
	"smart-scheduler/internal/scheduler"
)

// ListPendingTasks returns every task of owner that is not Completed, in
// the engine's shape.
func (s *Store) ListPendingTasks(ctx context.Context, owner int) ([]scheduler.Task, error) {
	tasks, err := s.queryTasks(ctx, s.db, taskSelect+`
		WHERE t.owner_id = ? AND t.status <> ?
		ORDER BY t.id ASC
	`, owner, string(scheduler.StatusCompleted))
	if err != nil {
		return nil, err
	}
	if err := s.attachDependencies(ctx, s.db, owner, tasks); err != nil {
		return nil, err
	}

	out := make([]scheduler.Task, 0, len(tasks))
	for _, t := range tasks {
		st := scheduler.Task{
			ID:        scheduler.TaskID(t.ID),
			Title:     t.Title,
			Duration:  t.DurationMinutes,
			Priority:  t.Priority,
			ProjectID: scheduler.ProjectID(t.ProjectID),
			Status:    t.Status,
		}
		for _, d := range t.Dependencies {
			st.Dependencies = append(st.Dependencies, scheduler.TaskID(d))
		}
		out = append(out, st)
	}
	return out, nil
}

// GetDependencyCompletionTime reports when a prerequisite was completed.
// ok is false when the task is unknown or not completed.
func (s *Store) GetDependencyCompletionTime(ctx context.Context, owner int, taskID scheduler.TaskID) (time.Time, bool, error) {
	var completed sql.NullString
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT completed_at FROM tasks
		WHERE owner_id = ? AND id = ? AND status = ?
	`), owner, int64(taskID), string(scheduler.StatusCompleted)).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := db.ParseTime(completed)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, !t.IsZero(), nil
}

// ApproveSuggestion records an accepted placement: it adds a "task"
// calendar event and stores the scheduled window on the task.
func (s *Store) ApproveSuggestion(ctx context.Context, owner int, a Approval) (CalendarEvent, error) {
	if a.TaskID == 0 || a.Start.IsZero() {
		return CalendarEvent{}, invalidf("task_id and start required")
	}

	var id int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		t, err := s.getTask(ctx, tx, owner, a.TaskID)
		if err != nil {
			return err
		}
		if t.Status == scheduler.StatusCompleted {
			return invalidf("task %d already completed", t.ID)
		}
		end := a.End
		if end.IsZero() {
			end = a.Start.Add(time.Duration(t.DurationMinutes) * time.Minute)
		}
		if !a.Start.Before(end) {
			return invalidf("start must be before end")
		}

		id, err = s.insertCalendarEvent(ctx, tx, owner, CalendarInput{
			Title:     t.Title,
			Start:     a.Start,
			End:       end,
			ProjectID: t.ProjectID,
			TaskID:    t.ID,
			EventType: EventTypeTask,
		})
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(`
			UPDATE tasks SET scheduled_start = ?, scheduled_end = ?
			WHERE owner_id = ? AND id = ?
		`), db.FormatTime(a.Start), db.FormatTime(end), owner, t.ID)
		return err
	})
	if err != nil {
		return CalendarEvent{}, err
	}
	return s.GetCalendarEvent(ctx, owner, id)
}
