package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smart-scheduler/internal/db"
	"smart-scheduler/internal/scheduler"
)

var testNow = time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.Connect(db.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	st := New(d, zerolog.Nop())
	st.Now = func() time.Time { return testNow }
	return st
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func mustProject(t *testing.T, st *Store, owner int, name string, prio int) Project {
	t.Helper()
	p, err := st.CreateProject(context.Background(), owner, ProjectInput{Name: strp(name), Priority: intp(prio)})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func mustTask(t *testing.T, st *Store, owner int, in TaskInput) Task {
	t.Helper()
	tk, err := st.CreateTask(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("create task %q: %v", in.Title, err)
	}
	return tk
}

func TestProjectCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	p := mustProject(t, st, 1, "Website", 1)
	if p.ID == 0 || p.Status != "In Progress" || p.Color != "#808080" || p.PriorityLabel != "High" {
		t.Fatalf("created = %+v", p)
	}
	if !p.CreatedAt.Equal(testNow) {
		t.Fatalf("created_at = %v", p.CreatedAt)
	}

	got, err := st.UpdateProject(ctx, 1, p.ID, ProjectInput{Priority: intp(3), Color: strp("#fff")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Website" || got.Priority != 3 || got.Color != "#fff" || got.PriorityLabel != "Low" {
		t.Fatalf("updated = %+v", got)
	}

	// another owner sees nothing
	if _, err := st.GetProject(ctx, 2, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner get err = %v", err)
	}
	list, err := st.ListProjects(ctx, 2)
	if err != nil || len(list) != 0 {
		t.Fatalf("owner 2 list = %v, %v", list, err)
	}

	if _, err := st.CreateProject(ctx, 1, ProjectInput{Name: strp("  ")}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty name err = %v", err)
	}
	if _, err := st.UpdateProject(ctx, 1, p.ID, ProjectInput{Priority: intp(7)}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("bad priority err = %v", err)
	}
}

func TestDeleteProjectRemovesTasks(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	p := mustProject(t, st, 1, "P", 2)
	pre := mustTask(t, st, 1, TaskInput{Title: "a", ProjectID: p.ID})
	dep := mustTask(t, st, 1, TaskInput{Title: "b", Dependencies: []int64{pre.ID}})

	if err := st.DeleteProject(ctx, 1, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, err := st.ListTasks(ctx, 1, TaskFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != dep.ID {
		t.Fatalf("tasks left = %+v", tasks)
	}

	got, err := st.GetTask(ctx, 1, dep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Dependencies) != 0 {
		t.Fatalf("stale dependencies = %v", got.Dependencies)
	}
	in := TaskInput{
		Title:           got.Title,
		DurationMinutes: got.DurationMinutes,
		Status:          got.Status,
		Priority:        got.Priority,
		Dependencies:    got.Dependencies,
	}
	if _, err := st.UpdateTask(ctx, 1, dep.ID, in); err != nil {
		t.Fatalf("update after project delete: %v", err)
	}
	if err := st.DeleteProject(ctx, 1, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestTaskDefaultsAndDependencies(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	p := mustProject(t, st, 1, "P", 2)

	a := mustTask(t, st, 1, TaskInput{Title: "design", ProjectID: p.ID})
	if a.DurationMinutes != 60 || a.Priority != 2 || a.Status != scheduler.StatusNotStarted {
		t.Fatalf("defaults = %+v", a)
	}
	if a.ProjectName != "P" || len(a.Dependencies) != 0 {
		t.Fatalf("project/deps = %q %v", a.ProjectName, a.Dependencies)
	}

	b := mustTask(t, st, 1, TaskInput{Title: "build", Dependencies: []int64{a.ID, a.ID}})
	if len(b.Dependencies) != 1 || b.Dependencies[0] != a.ID {
		t.Fatalf("deps = %v", b.Dependencies)
	}

	// self and foreign dependencies are rejected
	if _, err := st.UpdateTask(ctx, 1, b.ID, TaskInput{Title: "build", Dependencies: []int64{b.ID}}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("self dep err = %v", err)
	}
	other := mustTask(t, st, 2, TaskInput{Title: "x"})
	if _, err := st.CreateTask(ctx, 1, TaskInput{Title: "c", Dependencies: []int64{other.ID}}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("foreign dep err = %v", err)
	}
	if _, err := st.CreateTask(ctx, 1, TaskInput{Title: "c", ProjectID: 999}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unknown project err = %v", err)
	}

	// deleting a prerequisite drops the edge
	if err := st.DeleteTask(ctx, 1, a.ID); err != nil {
		t.Fatal(err)
	}
	b, err := st.GetTask(ctx, 1, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Dependencies) != 0 {
		t.Fatalf("deps after delete = %v", b.Dependencies)
	}
}

func TestTaskInputValidation(t *testing.T) {
	st := testStore(t)
	cases := map[string]TaskInput{
		"no title":     {Title: " "},
		"neg duration": {Title: "a", DurationMinutes: -5},
		"bad priority": {Title: "a", Priority: 4},
		"bad status":   {Title: "a", Status: "Done"},
		"bad dep":      {Title: "a", Dependencies: []int64{-1}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := st.CreateTask(context.Background(), 1, in); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestSetTaskStatusStampsAndHistory(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	tk := mustTask(t, st, 1, TaskInput{Title: "a"})

	st.Now = func() time.Time { return testNow.Add(time.Hour) }
	got, prev, err := st.SetTaskStatus(ctx, 1, tk.ID, scheduler.StatusInProgress, "")
	if err != nil {
		t.Fatal(err)
	}
	if prev != scheduler.StatusNotStarted || got.StartedAt == nil || !got.StartedAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("in progress = %+v prev=%s", got, prev)
	}

	st.Now = func() time.Time { return testNow.Add(3 * time.Hour) }
	got, _, err = st.SetTaskStatus(ctx, 1, tk.ID, scheduler.StatusCompleted, "done")
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(testNow.Add(3*time.Hour)) {
		t.Fatalf("completed_at = %v", got.CompletedAt)
	}
	if !got.StartedAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("started_at moved to %v", got.StartedAt)
	}

	when, ok, err := st.GetDependencyCompletionTime(ctx, 1, scheduler.TaskID(tk.ID))
	if err != nil || !ok || !when.Equal(testNow.Add(3*time.Hour)) {
		t.Fatalf("completion = %v %v %v", when, ok, err)
	}

	// reopening clears the completion instant
	got, _, err = st.SetTaskStatus(ctx, 1, tk.ID, scheduler.StatusOnHold, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt != nil {
		t.Fatalf("completed_at after reopen = %v", got.CompletedAt)
	}
	if _, ok, _ := st.GetDependencyCompletionTime(ctx, 1, scheduler.TaskID(tk.ID)); ok {
		t.Fatal("reopened task still reports completion")
	}

	hist, err := st.ListStatusUpdates(ctx, 1, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []scheduler.Status{scheduler.StatusNotStarted, scheduler.StatusInProgress, scheduler.StatusCompleted, scheduler.StatusOnHold}
	if len(hist) != len(want) {
		t.Fatalf("history len = %d", len(hist))
	}
	for i, h := range hist {
		if h.Status != want[i] {
			t.Fatalf("history[%d] = %s, want %s", i, h.Status, want[i])
		}
	}
	if hist[2].Notes != "done" {
		t.Fatalf("notes = %q", hist[2].Notes)
	}

	if _, _, err := st.SetTaskStatus(ctx, 1, tk.ID, "Done", ""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("bad status err = %v", err)
	}
	if _, _, err := st.SetTaskStatus(ctx, 2, tk.ID, scheduler.StatusCompleted, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner err = %v", err)
	}
}

func TestCalendarRangeAndBusy(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	p := mustProject(t, st, 1, "P", 1)

	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	mk := func(title string, h0, h1 int) CalendarEvent {
		e, err := st.CreateCalendarEvent(ctx, 1, CalendarInput{
			Title: title, Start: day.Add(time.Duration(h0) * time.Hour), End: day.Add(time.Duration(h1) * time.Hour), ProjectID: p.ID,
		})
		if err != nil {
			t.Fatalf("create event: %v", err)
		}
		return e
	}
	mk("standup", 9, 10)
	mk("lunch", 12, 13)
	late := mk("late", 20, 22)

	evs, err := st.ListCalendarEvents(ctx, 1, day.Add(9*time.Hour+30*time.Minute), day.Add(12*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Title != "standup" {
		t.Fatalf("range = %+v", evs)
	}
	if evs[0].EventType != EventTypeEvent || evs[0].ProjectName != "P" {
		t.Fatalf("event = %+v", evs[0])
	}

	busy, err := st.ListBusyIntervals(ctx, 1, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(busy) != 3 || busy[2].Title != "late" || busy[0].ProjectID != scheduler.ProjectID(p.ID) {
		t.Fatalf("busy = %+v", busy)
	}

	upd, err := st.UpdateCalendarEvent(ctx, 1, late.ID, CalendarInput{Title: "later", Start: late.Start, End: late.End.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if upd.Title != "later" || !upd.End.Equal(day.Add(23*time.Hour)) {
		t.Fatalf("updated = %+v", upd)
	}

	if _, err := st.CreateCalendarEvent(ctx, 1, CalendarInput{Title: "bad", Start: day, End: day}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty interval err = %v", err)
	}
	if err := st.DeleteCalendarEvent(ctx, 2, late.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner delete err = %v", err)
	}
	if err := st.DeleteCalendarEvent(ctx, 1, late.ID); err != nil {
		t.Fatal(err)
	}
}

func TestPendingTasksAndPriorities(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	p := mustProject(t, st, 1, "P", 1)
	a := mustTask(t, st, 1, TaskInput{Title: "a", ProjectID: p.ID, DurationMinutes: 30})
	mustTask(t, st, 1, TaskInput{Title: "b", Dependencies: []int64{a.ID}, Priority: 3})
	mustTask(t, st, 1, TaskInput{Title: "c", Status: scheduler.StatusCompleted})

	pending, err := st.ListPendingTasks(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %+v", pending)
	}
	if pending[0].Duration != 30 || pending[0].ProjectID != scheduler.ProjectID(p.ID) {
		t.Fatalf("pending[0] = %+v", pending[0])
	}
	if len(pending[1].Dependencies) != 1 || pending[1].Dependencies[0] != scheduler.TaskID(a.ID) {
		t.Fatalf("pending[1] deps = %v", pending[1].Dependencies)
	}

	prios, err := st.ProjectPriorities(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if prios[scheduler.ProjectID(p.ID)] != 1 {
		t.Fatalf("priorities = %v", prios)
	}
}

func TestProjectStatus(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	p := mustProject(t, st, 1, "P", 2)
	empty := mustProject(t, st, 1, "Empty", 2)
	mustTask(t, st, 1, TaskInput{Title: "a", ProjectID: p.ID, Status: scheduler.StatusCompleted})
	mustTask(t, st, 1, TaskInput{Title: "b", ProjectID: p.ID})
	mustTask(t, st, 1, TaskInput{Title: "c", ProjectID: p.ID})
	mustTask(t, st, 1, TaskInput{Title: "d", ProjectID: p.ID, Status: scheduler.StatusCompleted})

	rows, err := st.ProjectStatus(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].TotalTasks != 4 || rows[0].CompletedTasks != 2 || rows[0].Progress != 50 {
		t.Fatalf("P = %+v", rows[0])
	}
	if rows[1].ProjectID != empty.ID || rows[1].TotalTasks != 0 || rows[1].Progress != 0 {
		t.Fatalf("Empty = %+v", rows[1])
	}
}

func TestApproveSuggestion(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	p := mustProject(t, st, 1, "P", 2)
	tk := mustTask(t, st, 1, TaskInput{Title: "write", ProjectID: p.ID, DurationMinutes: 45})

	start := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	ev, err := st.ApproveSuggestion(ctx, 1, Approval{TaskID: tk.ID, Start: start})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ev.EventType != EventTypeTask || ev.TaskID != tk.ID || ev.ProjectID != p.ID || ev.Title != "write" {
		t.Fatalf("event = %+v", ev)
	}
	if !ev.End.Equal(start.Add(45 * time.Minute)) {
		t.Fatalf("end = %v", ev.End)
	}

	got, err := st.GetTask(ctx, 1, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ScheduledStart == nil || !got.ScheduledStart.Equal(start) || !got.ScheduledEnd.Equal(ev.End) {
		t.Fatalf("scheduled = %v - %v", got.ScheduledStart, got.ScheduledEnd)
	}

	if _, err := st.ApproveSuggestion(ctx, 1, Approval{TaskID: 999, Start: start}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown task err = %v", err)
	}
	if _, err := st.ApproveSuggestion(ctx, 1, Approval{TaskID: tk.ID, Start: start, End: start}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty window err = %v", err)
	}
	// a failed approval leaves no event behind
	evs, _ := st.ListCalendarEvents(ctx, 1, time.Time{}, time.Time{})
	if len(evs) != 1 {
		t.Fatalf("events = %d", len(evs))
	}
}
