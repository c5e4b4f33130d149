package scheduler

import (
	"time"
)

type TaskID int64

type ProjectID int64

type Status string

const (
	StatusNotStarted Status = "NotStarted"
	StatusInProgress Status = "InProgress"
	StatusOnHold     Status = "OnHold"
	StatusCompleted  Status = "Completed"
)

// Valid reports whether s is one of the known task states.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusOnHold, StatusCompleted:
		return true
	}
	return false
}

// Task is a pending work item as seen by the engine.
//
// Dependencies name tasks that must finish before this one may start. An id
// that is not part of the same request is treated as already satisfied: the
// prerequisite lives outside the snapshot, so its completion instant comes
// from Request.Completions (or "now" when unknown).
type Task struct {
	ID           TaskID    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	Duration     int       `json:"duration_minutes" yaml:"duration_minutes"`
	Priority     int       `json:"priority" yaml:"priority"`
	ProjectID    ProjectID `json:"project_id,omitempty" yaml:"project_id"`
	Status       Status    `json:"status" yaml:"status"`
	Dependencies []TaskID  `json:"dependencies,omitempty" yaml:"dependencies"`
}

// BusyInterval is an already committed block of time. The linkage fields are
// informational only.
type BusyInterval struct {
	Interval  `yaml:",inline"`
	Title     string    `json:"title,omitempty" yaml:"title"`
	TaskID    TaskID    `json:"task_id,omitempty" yaml:"task_id"`
	ProjectID ProjectID `json:"project_id,omitempty" yaml:"project_id"`
}

const (
	DefaultBuffer  = 15 * time.Minute
	DefaultHorizon = 90 * 24 * time.Hour
)

// Request is one immutable scheduling snapshot.
type Request struct {
	Tasks  []Task
	Busy   []BusyInterval
	Policy Policy

	// Buffer is the idle gap enforced after every placed task.
	Buffer time.Duration
	// Horizon caps how far past a task's readiness the finder searches.
	// Zero means DefaultHorizon.
	Horizon time.Duration

	// Start is the earliest instant any task may be placed. Zero means Now.
	Start time.Time
	// Now anchors readiness for prerequisites with no known completion time.
	// Zero means time.Now().
	Now time.Time

	ProjectPriorities map[ProjectID]int
	// Completions holds known completion instants of prerequisites, typically
	// tasks outside the request.
	Completions map[TaskID]time.Time
}

// NewRequest returns a request with the default buffer and horizon.
func NewRequest(tasks []Task, busy []BusyInterval, policy Policy) Request {
	return Request{
		Tasks:   tasks,
		Busy:    busy,
		Policy:  policy,
		Buffer:  DefaultBuffer,
		Horizon: DefaultHorizon,
	}
}

// Suggestion is a proposed placement for one task.
type Suggestion struct {
	TaskID TaskID `json:"task_id"`
	Title  string `json:"title"`
	Interval
	PriorityScore int    `json:"priority_score"`
	Reason        string `json:"reason"`
}

// Unscheduled records a task the run could not place, with the cause.
type Unscheduled struct {
	TaskID TaskID `json:"task_id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// RejectedInterval is an input busy interval dropped before the search.
type RejectedInterval struct {
	Index    int      `json:"index"`
	Interval Interval `json:"interval"`
	Reason   string   `json:"reason"`
}

type RunState string

const (
	StateInitialized RunState = "initialized"
	StateOrdering    RunState = "ordering"
	StateAllocating  RunState = "allocating"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)

// Result is the outcome of one allocation run. Every input task appears
// exactly once, either in Suggestions or in Unscheduled.
type Result struct {
	Suggestions []Suggestion       `json:"suggestions"`
	Unscheduled []Unscheduled      `json:"unscheduled"`
	Rejected    []RejectedInterval `json:"rejected,omitempty"`
	State       RunState           `json:"state"`
}

// PriorityLabel converts an ordinal priority to its display label.
func PriorityLabel(p int) string {
	switch p {
	case 1:
		return "High"
	case 3:
		return "Low"
	default:
		return "Medium"
	}
}
