package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidRequest       = errors.New("invalid scheduling request")
	ErrInvalidTask          = errors.New("invalid task")
	ErrInvalidInterval      = errors.New("invalid busy interval")
	ErrCyclicDependency     = errors.New("cyclic dependency")
	ErrNoFeasibleSlot       = errors.New("no feasible slot")
	ErrPolicyUnsatisfiable  = errors.New("policy unsatisfiable")
	ErrDependencyUnresolved = errors.New("prerequisite not scheduled")
	ErrAlreadyCompleted     = errors.New("task already completed")
)

// CyclicDependencyError reports the tasks forming a dependency cycle.
//
// TaskIDs is the sorted member set; Path is one witness walk that starts and
// ends on the same task.
type CyclicDependencyError struct {
	TaskIDs []TaskID
	Path    []TaskID
}

func (e *CyclicDependencyError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Path) == 0 {
		return ErrCyclicDependency.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, joinIDs(e.Path, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// NoFeasibleSlotError is local to one task; the run continues without it.
type NoFeasibleSlotError struct {
	TaskID  TaskID
	Horizon time.Duration
}

func (e *NoFeasibleSlotError) Error() string {
	return fmt.Sprintf("%s for task %d within %s", ErrNoFeasibleSlot, e.TaskID, e.Horizon)
}

func (e *NoFeasibleSlotError) Unwrap() error { return ErrNoFeasibleSlot }

type PolicyError struct {
	Msg string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPolicyUnsatisfiable, e.Msg)
}

func (e *PolicyError) Unwrap() error { return ErrPolicyUnsatisfiable }

func policyErrorf(format string, args ...any) error {
	return &PolicyError{Msg: fmt.Sprintf(format, args...)}
}

type InvalidTaskError struct {
	TaskID TaskID
	Msg    string
}

func (e *InvalidTaskError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrInvalidTask, e.TaskID, e.Msg)
}

func (e *InvalidTaskError) Unwrap() error { return ErrInvalidTask }

type InvalidIntervalError struct {
	Index    int
	Interval Interval
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("%s #%d: start %s is not before end %s", ErrInvalidInterval, e.Index,
		e.Interval.Start.Format(time.RFC3339), e.Interval.End.Format(time.RFC3339))
}

func (e *InvalidIntervalError) Unwrap() error { return ErrInvalidInterval }

// DependencyError marks a task whose in-request prerequisite was left
// unscheduled, so no placement could respect the ordering.
type DependencyError struct {
	TaskID       TaskID
	Prerequisite TaskID
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("task %d: %s: %d", e.TaskID, ErrDependencyUnresolved, e.Prerequisite)
}

func (e *DependencyError) Unwrap() error { return ErrDependencyUnresolved }

func invalidRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func joinIDs(ids []TaskID, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, sep)
}

func sortIDs(ids []TaskID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
