package store

import (
	"time"

	"smart-scheduler/internal/scheduler"
)

type Project struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	Priority      int       `json:"priority"`
	PriorityLabel string    `json:"priority_label"`
	Color         string    `json:"color"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProjectInput is the body of a project create or update. Nil fields keep
// their current (or default) value.
type ProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *int    `json:"priority"`
	Color       *string `json:"color"`
}

type Task struct {
	ID              int64            `json:"id"`
	ProjectID       int64            `json:"project_id,omitempty"`
	ProjectName     string           `json:"project_name,omitempty"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	DurationMinutes int              `json:"duration_minutes"`
	Status          scheduler.Status `json:"status"`
	Priority        int              `json:"priority"`
	PriorityLabel   string           `json:"priority_label"`
	Dependencies    []int64          `json:"dependencies"`
	ScheduledStart  *time.Time       `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time       `json:"scheduled_end,omitempty"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// TaskInput is the body of a task create or full update.
type TaskInput struct {
	ProjectID       int64            `json:"project_id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	DurationMinutes int              `json:"duration_minutes"`
	Status          scheduler.Status `json:"status"`
	Priority        int              `json:"priority"`
	Dependencies    []int64          `json:"dependencies"`
}

type StatusUpdate struct {
	ID        int64            `json:"id"`
	TaskID    int64            `json:"task_id"`
	Status    scheduler.Status `json:"status"`
	Notes     string           `json:"notes,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

const (
	EventTypeEvent = "event"
	EventTypeTask  = "task"
)

type CalendarEvent struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	ProjectID   int64     `json:"project_id,omitempty"`
	ProjectName string    `json:"project_name,omitempty"`
	Color       string    `json:"color,omitempty"`
	TaskID      int64     `json:"task_id,omitempty"`
	EventType   string    `json:"event_type"`
}

type CalendarInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	ProjectID   int64     `json:"project_id"`
	TaskID      int64     `json:"task_id"`
	EventType   string    `json:"event_type"`
}

// ProjectProgress is one row of the project status report.
type ProjectProgress struct {
	ProjectID      int64   `json:"project_id"`
	ProjectName    string  `json:"project_name"`
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	Progress       float64 `json:"progress"`
}

// Approval pins a suggested slot into the calendar. A zero End means
// Start plus the task's duration.
type Approval struct {
	TaskID int64     `json:"task_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}
