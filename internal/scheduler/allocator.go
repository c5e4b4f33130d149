package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Suggest orders the request's tasks and greedily places each at the
// earliest feasible slot. It never mutates the request.
//
// A cycle, an unsatisfiable policy or a malformed request fails the whole
// call and returns no suggestions. Anything local to one task (bad input,
// no slot within the horizon, an unplaced prerequisite) lands in
// Result.Unscheduled and the run goes on.
func Suggest(req Request) (Result, error) {
	a := newAllocator(req)
	return a.run()
}

type allocator struct {
	req   Request
	state RunState

	loc    *time.Location
	now    time.Time
	cursor time.Time

	tasks  map[TaskID]Task
	score  map[TaskID]int
	placed map[TaskID]Interval
	failed map[TaskID]bool

	result Result
}

func newAllocator(req Request) *allocator {
	return &allocator{
		req:    req,
		state:  StateInitialized,
		tasks:  make(map[TaskID]Task, len(req.Tasks)),
		score:  make(map[TaskID]int, len(req.Tasks)),
		placed: make(map[TaskID]Interval, len(req.Tasks)),
		failed: make(map[TaskID]bool),
	}
}

func (a *allocator) fail(err error) (Result, error) {
	a.state = StateFailed
	return Result{State: StateFailed}, err
}

func (a *allocator) run() (Result, error) {
	if err := a.prepare(); err != nil {
		return a.fail(err)
	}

	a.state = StateOrdering
	order, err := newDepGraph(a.req.Tasks).order(a.score)
	if err != nil {
		return a.fail(err)
	}

	a.state = StateAllocating
	if err := a.allocate(order); err != nil {
		return a.fail(err)
	}

	a.state = StateDone
	a.result.State = a.state
	if a.result.Suggestions == nil {
		a.result.Suggestions = []Suggestion{}
	}
	if a.result.Unscheduled == nil {
		a.result.Unscheduled = []Unscheduled{}
	}
	return a.result, nil
}

// prepare validates the request and builds the per-run indices. Malformed
// tasks and intervals are reported individually; only request-wide problems
// return an error.
func (a *allocator) prepare() error {
	p := a.req.Policy
	if p.Mode == "" {
		p.Mode = ModeInside
	}
	if err := p.Validate(); err != nil {
		return err
	}
	a.req.Policy = p
	a.loc = p.loc()

	if a.req.Buffer < 0 {
		return invalidRequestf("negative buffer %s", a.req.Buffer)
	}
	if a.req.Horizon < 0 {
		return invalidRequestf("negative horizon %s", a.req.Horizon)
	}
	if a.req.Horizon == 0 {
		a.req.Horizon = DefaultHorizon
	}

	a.now = a.req.Now
	if a.now.IsZero() {
		a.now = time.Now()
	}
	a.now = a.now.In(a.loc)
	start := a.req.Start
	if start.IsZero() {
		start = a.now
	}
	a.cursor = ceilMinute(start.In(a.loc))

	for _, t := range a.req.Tasks {
		if _, dup := a.tasks[t.ID]; dup {
			return invalidRequestf("duplicate task id %d", t.ID)
		}
		a.tasks[t.ID] = t
		a.score[t.ID] = a.priorityScore(t)
	}

	for _, t := range a.req.Tasks {
		switch {
		case t.Duration <= 0:
			a.unschedule(t, &InvalidTaskError{TaskID: t.ID, Msg: fmt.Sprintf("duration must be positive, got %d", t.Duration)})
		case t.Status != "" && !t.Status.Valid():
			a.unschedule(t, &InvalidTaskError{TaskID: t.ID, Msg: fmt.Sprintf("unknown status %q", t.Status)})
		case t.Status == StatusCompleted:
			a.unschedule(t, ErrAlreadyCompleted)
		}
	}
	return nil
}

func (a *allocator) allocate(order []TaskID) error {
	busy := make([]Interval, 0, len(a.req.Busy))
	for i, b := range a.req.Busy {
		if !b.Valid() {
			err := &InvalidIntervalError{Index: i, Interval: b.Interval}
			a.result.Rejected = append(a.result.Rejected, RejectedInterval{Index: i, Interval: b.Interval, Reason: err.Error()})
			continue
		}
		busy = append(busy, b.Interval.In(a.loc))
	}
	f := &slotFinder{policy: a.req.Policy, busy: newBusySet(busy), horizon: a.req.Horizon}

	for _, id := range order {
		t := a.tasks[id]
		if a.failed[id] {
			continue
		}

		readyAt, err := a.readyAt(t)
		if err != nil {
			a.unschedule(t, err)
			continue
		}

		iv, err := f.find(id, readyAt, time.Duration(t.Duration)*time.Minute)
		if errors.Is(err, ErrPolicyUnsatisfiable) {
			return err
		}
		if err != nil {
			a.unschedule(t, err)
			continue
		}

		a.placed[id] = iv
		f.busy.insert(iv)
		a.cursor = iv.End.Add(a.req.Buffer)
		a.result.Suggestions = append(a.result.Suggestions, Suggestion{
			TaskID:        id,
			Title:         t.Title,
			Interval:      iv,
			PriorityScore: a.score[id],
			Reason:        a.reason(t, readyAt, iv),
		})
	}
	return nil
}

// readyAt is the earliest instant t may start: the cursor, pushed later by
// the end of every placed prerequisite and by the known completion time of
// prerequisites that are finished or outside the request.
func (a *allocator) readyAt(t Task) (time.Time, error) {
	ready := a.cursor
	later := func(c time.Time) {
		if c.After(ready) {
			ready = c
		}
	}
	completedAt := func(id TaskID) time.Time {
		if c, ok := a.req.Completions[id]; ok && !c.IsZero() {
			return c.In(a.loc)
		}
		return a.now
	}

	for _, dep := range t.Dependencies {
		pre, inRequest := a.tasks[dep]
		switch {
		case !inRequest, pre.Status == StatusCompleted:
			later(completedAt(dep))
		default:
			iv, ok := a.placed[dep]
			if !ok {
				return time.Time{}, &DependencyError{TaskID: t.ID, Prerequisite: dep}
			}
			later(iv.End)
		}
	}
	return ready, nil
}

func (a *allocator) priorityScore(t Task) int {
	s := t.Priority
	if t.ProjectID != 0 {
		s += a.req.ProjectPriorities[t.ProjectID]
	}
	return s
}

func (a *allocator) unschedule(t Task, err error) {
	a.failed[t.ID] = true
	a.result.Unscheduled = append(a.result.Unscheduled, Unscheduled{
		TaskID: t.ID,
		Title:  t.Title,
		Reason: err.Error(),
		Err:    err,
	})
}

func (a *allocator) reason(t Task, readyAt time.Time, iv Interval) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Priority: %s (Task)", PriorityLabel(t.Priority))
	if pp, ok := a.req.ProjectPriorities[t.ProjectID]; ok && t.ProjectID != 0 {
		fmt.Fprintf(&b, " + %s (Project)", PriorityLabel(pp))
	}
	fmt.Fprintf(&b, ", score %d", a.score[t.ID])
	if n := len(t.Dependencies); n > 0 {
		fmt.Fprintf(&b, "; after %d prerequisite(s)", n)
	}
	if iv.Start.After(readyAt) {
		fmt.Fprintf(&b, "; earliest free slot after %s", readyAt.Format("Mon 2006-01-02 15:04"))
	}
	return b.String()
}

func ceilMinute(t time.Time) time.Time {
	r := t.Truncate(time.Minute)
	if r.Before(t) {
		r = r.Add(time.Minute)
	}
	return r
}

// IsFatal reports whether err aborts a whole run rather than one task.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCyclicDependency) ||
		errors.Is(err, ErrPolicyUnsatisfiable) ||
		errors.Is(err, ErrInvalidRequest)
}
