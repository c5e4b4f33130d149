package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"smart-scheduler/internal/db"
	"smart-scheduler/internal/scheduler"
)

const (
	defaultProjectStatus = "In Progress"
	defaultProjectColor  = "#808080"
	defaultPriority      = 2
)

func validPriority(p int) bool { return p >= 1 && p <= 3 }

func (s *Store) ListProjects(ctx context.Context, owner int) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, name, description, status, priority, color, created_at
		FROM projects
		WHERE owner_id = ?
		ORDER BY priority ASC, id ASC
	`), owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, owner int, id int64) (Project, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, name, description, status, priority, color, created_at
		FROM projects
		WHERE owner_id = ? AND id = ?
	`), owner, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	return p, err
}

func (s *Store) CreateProject(ctx context.Context, owner int, in ProjectInput) (Project, error) {
	p := Project{
		Status:   defaultProjectStatus,
		Priority: defaultPriority,
		Color:    defaultProjectColor,
	}
	if err := applyProjectInput(&p, in); err != nil {
		return Project{}, err
	}
	if p.Name == "" {
		return Project{}, invalidf("name required")
	}
	p.CreatedAt = s.Now()

	err := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO projects (owner_id, name, description, status, priority, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), owner, p.Name, p.Description, p.Status, p.Priority, p.Color, db.FormatTime(p.CreatedAt)).Scan(&p.ID)
	if err != nil {
		return Project{}, err
	}
	p.PriorityLabel = scheduler.PriorityLabel(p.Priority)
	s.log.Debug().Str("op", "insert").Str("table", "projects").Int64("id", p.ID).Msg("sql")
	return p, nil
}

// UpdateProject applies the non-nil fields of in.
func (s *Store) UpdateProject(ctx context.Context, owner int, id int64, in ProjectInput) (Project, error) {
	p, err := s.GetProject(ctx, owner, id)
	if err != nil {
		return Project{}, err
	}
	if err := applyProjectInput(&p, in); err != nil {
		return Project{}, err
	}
	if p.Name == "" {
		return Project{}, invalidf("name required")
	}

	_, err = s.db.ExecContext(ctx, s.q(`
		UPDATE projects
		SET name = ?, description = ?, status = ?, priority = ?, color = ?
		WHERE owner_id = ? AND id = ?
	`), p.Name, p.Description, p.Status, p.Priority, p.Color, owner, id)
	if err != nil {
		return Project{}, err
	}
	p.PriorityLabel = scheduler.PriorityLabel(p.Priority)
	return p, nil
}

// DeleteProject removes the project together with its tasks. Tasks outside
// the project lose their edges to the deleted ones.
func (s *Store) DeleteProject(ctx context.Context, owner int, id int64) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`
			DELETE FROM task_dependencies WHERE prerequisite_id IN (
				SELECT id FROM tasks WHERE owner_id = ? AND project_id = ?
			)
		`), owner, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`
			DELETE FROM tasks WHERE owner_id = ? AND project_id = ?
		`), owner, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`
			DELETE FROM projects WHERE owner_id = ? AND id = ?
		`), owner, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ProjectStatus reports completion progress for every project of owner.
func (s *Store) ProjectStatus(ctx context.Context, owner int) ([]ProjectProgress, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT p.id, p.name,
			COUNT(t.id),
			COALESCE(SUM(CASE WHEN t.status = ? THEN 1 ELSE 0 END), 0)
		FROM projects p
		LEFT JOIN tasks t ON t.project_id = p.id AND t.owner_id = p.owner_id
		WHERE p.owner_id = ?
		GROUP BY p.id, p.name
		ORDER BY p.id ASC
	`), string(scheduler.StatusCompleted), owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ProjectProgress{}
	for rows.Next() {
		var pp ProjectProgress
		if err := rows.Scan(&pp.ProjectID, &pp.ProjectName, &pp.TotalTasks, &pp.CompletedTasks); err != nil {
			return nil, err
		}
		if pp.TotalTasks > 0 {
			pp.Progress = float64(pp.CompletedTasks) / float64(pp.TotalTasks) * 100
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

// ProjectPriorities maps each project of owner to its priority.
func (s *Store) ProjectPriorities(ctx context.Context, owner int) (map[scheduler.ProjectID]int, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, priority FROM projects WHERE owner_id = ?
	`), owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[scheduler.ProjectID]int{}
	for rows.Next() {
		var id int64
		var prio int
		if err := rows.Scan(&id, &prio); err != nil {
			return nil, err
		}
		out[scheduler.ProjectID(id)] = prio
	}
	return out, rows.Err()
}

func applyProjectInput(p *Project, in ProjectInput) error {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		p.Status = strings.TrimSpace(*in.Status)
	}
	if in.Priority != nil {
		if !validPriority(*in.Priority) {
			return invalidf("priority must be 1, 2 or 3")
		}
		p.Priority = *in.Priority
	}
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		p.Color = strings.TrimSpace(*in.Color)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (Project, error) {
	var (
		p       Project
		created sql.NullString
	)
	if err := r.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.Priority, &p.Color, &created); err != nil {
		return Project{}, err
	}
	t, err := db.ParseTime(created)
	if err != nil {
		return Project{}, err
	}
	p.CreatedAt = t
	p.PriorityLabel = scheduler.PriorityLabel(p.Priority)
	return p, nil
}
