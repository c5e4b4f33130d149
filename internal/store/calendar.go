package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"smart-scheduler/internal/db"
	"smart-scheduler/internal/scheduler"
)

const calendarSelect = `
	SELECT e.id, e.title, e.description, e.start_time, e.end_time,
		COALESCE(e.project_id, 0), COALESCE(p.name, ''), COALESCE(p.color, ''),
		COALESCE(e.task_id, 0), e.event_type
	FROM calendar_events e
	LEFT JOIN projects p ON p.id = e.project_id
`

// ListCalendarEvents returns the events of owner overlapping [from, to).
// A zero bound is open.
func (s *Store) ListCalendarEvents(ctx context.Context, owner int, from, to time.Time) ([]CalendarEvent, error) {
	query := calendarSelect + ` WHERE e.owner_id = ?`
	args := []any{owner}
	if !to.IsZero() {
		query += ` AND e.start_time < ?`
		args = append(args, db.FormatTime(to))
	}
	if !from.IsZero() {
		query += ` AND e.end_time > ?`
		args = append(args, db.FormatTime(from))
	}
	query += ` ORDER BY e.start_time ASC, e.id ASC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CalendarEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetCalendarEvent(ctx context.Context, owner int, id int64) (CalendarEvent, error) {
	return s.getCalendarEvent(ctx, s.db, owner, id)
}

func (s *Store) getCalendarEvent(ctx context.Context, q querier, owner int, id int64) (CalendarEvent, error) {
	rows, err := q.QueryContext(ctx, s.q(calendarSelect+` WHERE e.owner_id = ? AND e.id = ?`), owner, id)
	if err != nil {
		return CalendarEvent{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return CalendarEvent{}, err
		}
		return CalendarEvent{}, ErrNotFound
	}
	return scanEvent(rows)
}

func (s *Store) CreateCalendarEvent(ctx context.Context, owner int, in CalendarInput) (CalendarEvent, error) {
	in, err := normalizeCalendarInput(in)
	if err != nil {
		return CalendarEvent{}, err
	}
	var id int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.insertCalendarEvent(ctx, tx, owner, in)
		return err
	})
	if err != nil {
		return CalendarEvent{}, err
	}
	return s.GetCalendarEvent(ctx, owner, id)
}

func (s *Store) UpdateCalendarEvent(ctx context.Context, owner int, id int64, in CalendarInput) (CalendarEvent, error) {
	in, err := normalizeCalendarInput(in)
	if err != nil {
		return CalendarEvent{}, err
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkEventRefs(ctx, tx, owner, in); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE calendar_events
			SET title = ?, description = ?, start_time = ?, end_time = ?,
				project_id = ?, task_id = ?, event_type = ?
			WHERE owner_id = ? AND id = ?
		`), in.Title, in.Description, db.FormatTime(in.Start), db.FormatTime(in.End),
			db.NullID(in.ProjectID), db.NullID(in.TaskID), in.EventType, owner, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return CalendarEvent{}, err
	}
	return s.GetCalendarEvent(ctx, owner, id)
}

func (s *Store) DeleteCalendarEvent(ctx context.Context, owner int, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM calendar_events WHERE owner_id = ? AND id = ?`), owner, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) insertCalendarEvent(ctx context.Context, q querier, owner int, in CalendarInput) (int64, error) {
	if err := s.checkEventRefs(ctx, q, owner, in); err != nil {
		return 0, err
	}
	var id int64
	err := q.QueryRowContext(ctx, s.q(`
		INSERT INTO calendar_events (owner_id, title, description, start_time, end_time,
			project_id, task_id, event_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), owner, in.Title, in.Description, db.FormatTime(in.Start), db.FormatTime(in.End),
		db.NullID(in.ProjectID), db.NullID(in.TaskID), in.EventType).Scan(&id)
	if err != nil {
		return 0, err
	}
	s.log.Debug().Str("op", "insert").Str("table", "calendar_events").Int64("id", id).Msg("sql")
	return id, nil
}

func (s *Store) checkEventRefs(ctx context.Context, q querier, owner int, in CalendarInput) error {
	var one int
	if in.ProjectID != 0 {
		err := q.QueryRowContext(ctx, s.q(`SELECT 1 FROM projects WHERE owner_id = ? AND id = ?`), owner, in.ProjectID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return invalidf("project %d not found", in.ProjectID)
		}
		if err != nil {
			return err
		}
	}
	if in.TaskID != 0 {
		err := q.QueryRowContext(ctx, s.q(`SELECT 1 FROM tasks WHERE owner_id = ? AND id = ?`), owner, in.TaskID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return invalidf("task %d not found", in.TaskID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ListBusyIntervals returns the owner's calendar events overlapping
// [from, to) as busy time for the scheduler.
func (s *Store) ListBusyIntervals(ctx context.Context, owner int, from, to time.Time) ([]scheduler.BusyInterval, error) {
	events, err := s.ListCalendarEvents(ctx, owner, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.BusyInterval, 0, len(events))
	for _, e := range events {
		out = append(out, scheduler.BusyInterval{
			Interval:  scheduler.Interval{Start: e.Start, End: e.End},
			Title:     e.Title,
			TaskID:    scheduler.TaskID(e.TaskID),
			ProjectID: scheduler.ProjectID(e.ProjectID),
		})
	}
	return out, nil
}

func normalizeCalendarInput(in CalendarInput) (CalendarInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return in, invalidf("title required")
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return in, invalidf("start and end required")
	}
	if !in.Start.Before(in.End) {
		return in, invalidf("start must be before end")
	}
	switch in.EventType {
	case "":
		in.EventType = EventTypeEvent
	case EventTypeEvent, EventTypeTask:
	default:
		return in, invalidf("unknown event_type %q", in.EventType)
	}
	return in, nil
}

func scanEvent(r rowScanner) (CalendarEvent, error) {
	var (
		e          CalendarEvent
		start, end sql.NullString
	)
	if err := r.Scan(&e.ID, &e.Title, &e.Description, &start, &end,
		&e.ProjectID, &e.ProjectName, &e.Color, &e.TaskID, &e.EventType); err != nil {
		return CalendarEvent{}, err
	}
	var err error
	if e.Start, err = db.ParseTime(start); err != nil {
		return CalendarEvent{}, err
	}
	if e.End, err = db.ParseTime(end); err != nil {
		return CalendarEvent{}, err
	}
	return e, nil
}
