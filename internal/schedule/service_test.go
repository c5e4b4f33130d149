package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smart-scheduler/internal/ai"
	"smart-scheduler/internal/analytics"
	"smart-scheduler/internal/auth"
	"smart-scheduler/internal/config"
	"smart-scheduler/internal/db"
	"smart-scheduler/internal/scheduler"
	"smart-scheduler/internal/store"
)

// Monday 2024-01-08 08:30 UTC
var monday0830 = time.Date(2024, 1, 8, 8, 30, 0, 0, time.UTC)

type fakeSource struct {
	tasks       []scheduler.Task
	busy        []scheduler.BusyInterval
	prios       map[scheduler.ProjectID]int
	completions map[scheduler.TaskID]time.Time
	asked       []scheduler.TaskID
	err         error
}

func (f *fakeSource) ListPendingTasks(ctx context.Context, owner int) ([]scheduler.Task, error) {
	return f.tasks, f.err
}

func (f *fakeSource) ListBusyIntervals(ctx context.Context, owner int, from, to time.Time) ([]scheduler.BusyInterval, error) {
	return f.busy, nil
}

func (f *fakeSource) GetDependencyCompletionTime(ctx context.Context, owner int, id scheduler.TaskID) (time.Time, bool, error) {
	f.asked = append(f.asked, id)
	t, ok := f.completions[id]
	return t, ok, nil
}

func (f *fakeSource) ProjectPriorities(ctx context.Context, owner int) (map[scheduler.ProjectID]int, error) {
	return f.prios, nil
}

type fakeApprover struct {
	got store.Approval
}

func (f *fakeApprover) ApproveSuggestion(ctx context.Context, owner int, a store.Approval) (store.CalendarEvent, error) {
	f.got = a
	if a.TaskID == 404 {
		return store.CalendarEvent{}, store.ErrNotFound
	}
	return store.CalendarEvent{ID: 7, TaskID: a.TaskID, Start: a.Start, End: a.Start.Add(time.Hour), EventType: store.EventTypeTask}, nil
}

type staticPolicy config.Schedule

func (p staticPolicy) Current() config.Schedule { return config.Schedule(p) }

type fakeSummarizer struct {
	text string
	err  error
}

func (f fakeSummarizer) Summarize(ctx context.Context, s []scheduler.Suggestion) (string, error) {
	return f.text, f.err
}

func newService(src *fakeSource, sum *fakeSummarizer) (*Service, *fakeApprover) {
	ap := &fakeApprover{}
	var summarizer ai.Summarizer
	if sum != nil {
		summarizer = *sum
	}
	svc := New(src, ap, staticPolicy(config.DefaultSchedule()), summarizer, nil, zerolog.Nop())
	svc.now = func() time.Time { return monday0830 }
	return svc, ap
}

func TestSuggestBuildsSnapshot(t *testing.T) {
	src := &fakeSource{
		tasks: []scheduler.Task{
			{ID: 1, Title: "a", Duration: 60, Priority: 2, Status: scheduler.StatusNotStarted, Dependencies: []scheduler.TaskID{9}},
			{ID: 2, Title: "b", Duration: 30, Priority: 2, Status: scheduler.StatusNotStarted, Dependencies: []scheduler.TaskID{1, 9}},
		},
		busy: []scheduler.BusyInterval{{Interval: scheduler.Interval{
			Start: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
		}}},
		completions: map[scheduler.TaskID]time.Time{9: time.Date(2024, 1, 8, 11, 0, 0, 0, time.UTC)},
	}
	svc, _ := newService(src, nil)

	run, err := svc.Suggest(context.Background(), 1, Options{})
	if err != nil {
		t.Fatal(err)
	}
	// prerequisite 9 is looked up once, prerequisite 1 is in the request
	if len(src.asked) != 1 || src.asked[0] != 9 {
		t.Fatalf("asked = %v", src.asked)
	}
	s := run.Result.Suggestions
	if len(s) != 2 {
		t.Fatalf("suggestions = %+v", run.Result)
	}
	if s[0].TaskID != 1 || s[0].Start.Hour() != 11 {
		t.Fatalf("first = %+v", s[0])
	}
	if s[1].TaskID != 2 || !s[1].Start.Equal(s[0].End.Add(15*time.Minute)) {
		t.Fatalf("second = %+v", s[1])
	}
	if !run.From.Equal(monday0830) || run.Policy.Mode != "inside" {
		t.Fatalf("run meta = %+v", run)
	}

	latest, ok := svc.Latest(1)
	if !ok || len(latest.Result.Suggestions) != 2 {
		t.Fatalf("latest = %+v %v", latest, ok)
	}
	if _, ok := svc.Latest(2); ok {
		t.Fatal("other owner has a latest run")
	}
}

func TestSuggestCycleNotCached(t *testing.T) {
	src := &fakeSource{tasks: []scheduler.Task{
		{ID: 1, Title: "a", Duration: 30, Status: scheduler.StatusNotStarted, Dependencies: []scheduler.TaskID{2}},
		{ID: 2, Title: "b", Duration: 30, Status: scheduler.StatusNotStarted, Dependencies: []scheduler.TaskID{1}},
	}}
	svc, _ := newService(src, nil)

	run, err := svc.Suggest(context.Background(), 1, Options{})
	var cyc *scheduler.CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("err = %v", err)
	}
	if run.Result.State != scheduler.StateFailed {
		t.Fatalf("state = %s", run.Result.State)
	}
	if _, ok := svc.Latest(1); ok {
		t.Fatal("failed run was cached")
	}
}

func TestSuggestSourceError(t *testing.T) {
	svc, _ := newService(&fakeSource{err: errors.New("db down")}, nil)
	if _, err := svc.Suggest(context.Background(), 1, Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSuggestSummary(t *testing.T) {
	src := &fakeSource{tasks: []scheduler.Task{{ID: 1, Title: "a", Duration: 30, Status: scheduler.StatusNotStarted}}}

	svc, _ := newService(src, &fakeSummarizer{text: "Do a first."})
	run, err := svc.Suggest(context.Background(), 1, Options{Summary: true})
	if err != nil || run.Summary != "Do a first." || run.SummaryError != "" {
		t.Fatalf("run = %+v, %v", run, err)
	}

	svc, _ = newService(src, &fakeSummarizer{err: errors.New("quota")})
	run, err = svc.Suggest(context.Background(), 1, Options{Summary: true})
	if err != nil {
		t.Fatal(err)
	}
	if run.SummaryError != "quota" || len(run.Result.Suggestions) != 1 {
		t.Fatalf("run = %+v", run)
	}

	svc, _ = newService(src, nil)
	run, _ = svc.Suggest(context.Background(), 1, Options{Summary: true})
	if run.SummaryError == "" {
		t.Fatal("missing summarizer not reported")
	}
}

func withUser(r *http.Request) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), 1))
}

func TestSuggestHandler(t *testing.T) {
	src := &fakeSource{tasks: []scheduler.Task{{ID: 1, Title: "a", Duration: 60, Status: scheduler.StatusNotStarted}}}
	svc, _ := newService(src, &fakeSummarizer{err: errors.New("quota")})
	h := SuggestHandler(svc)

	w := httptest.NewRecorder()
	h(w, withUser(httptest.NewRequest("GET", "/api/schedule/suggest?from=2024-01-12T16:30:00Z&summary=1", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-AI-Error") != "1" {
		t.Fatal("missing X-AI-Error")
	}
	var run struct {
		Result struct {
			Suggestions []struct {
				TaskID int       `json:"task_id"`
				Start  time.Time `json:"start"`
			} `json:"suggestions"`
		} `json:"result"`
		SummaryError string `json:"summary_error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	// Friday 16:30 with a 60-minute task spills to Monday 09:00
	want := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	if len(run.Result.Suggestions) != 1 || !run.Result.Suggestions[0].Start.Equal(want) {
		t.Fatalf("suggestions = %+v", run.Result.Suggestions)
	}

	w = httptest.NewRecorder()
	h(w, withUser(httptest.NewRequest("GET", "/api/schedule/suggest?from=friday", nil)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad from code = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/schedule/suggest", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous code = %d", w.Code)
	}
}

func TestSuggestHandlerCycleIsConflict(t *testing.T) {
	src := &fakeSource{tasks: []scheduler.Task{
		{ID: 1, Title: "a", Duration: 30, Status: scheduler.StatusNotStarted, Dependencies: []scheduler.TaskID{1}},
	}}
	svc, _ := newService(src, nil)
	w := httptest.NewRecorder()
	SuggestHandler(svc)(w, withUser(httptest.NewRequest("GET", "/api/schedule/suggest", nil)))
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), "cyclic") {
		t.Fatalf("code = %d body=%q", w.Code, w.Body.String())
	}
}

func TestApproveAndLatestHandlers(t *testing.T) {
	svc, ap := newService(&fakeSource{}, nil)

	w := httptest.NewRecorder()
	LatestHandler(svc)(w, withUser(httptest.NewRequest("GET", "/api/schedule/latest", nil)))
	if w.Code != http.StatusNotFound {
		t.Fatalf("latest before run = %d", w.Code)
	}

	body := `{"task_id":3,"start":"2024-01-08T09:00:00Z"}`
	w = httptest.NewRecorder()
	ApproveHandler(svc)(w, withUser(httptest.NewRequest("POST", "/api/schedule/approve", strings.NewReader(body))))
	if w.Code != http.StatusCreated {
		t.Fatalf("approve code = %d body=%s", w.Code, w.Body.String())
	}
	if ap.got.TaskID != 3 || ap.got.Start.Hour() != 9 {
		t.Fatalf("approver got %+v", ap.got)
	}

	w = httptest.NewRecorder()
	ApproveHandler(svc)(w, withUser(httptest.NewRequest("POST", "/api/schedule/approve", strings.NewReader(`{"task_id":404,"start":"2024-01-08T09:00:00Z"}`))))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown task code = %d", w.Code)
	}

	w = httptest.NewRecorder()
	ApproveHandler(svc)(w, withUser(httptest.NewRequest("POST", "/api/schedule/approve", strings.NewReader(`{}`))))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty body code = %d", w.Code)
	}

	w = httptest.NewRecorder()
	PolicyHandler(svc)(w, httptest.NewRequest("GET", "/api/schedule/policy", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"start_hour":9`) {
		t.Fatalf("policy = %d %s", w.Code, w.Body.String())
	}
}

func TestHandlersLogAnalyticsFailures(t *testing.T) {
	// no migration: every insert into analytics_events fails
	d, err := db.Connect(db.SQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })

	src := &fakeSource{tasks: []scheduler.Task{{ID: 1, Title: "a", Duration: 60, Status: scheduler.StatusNotStarted}}}
	svc, _ := newService(src, nil)
	svc.events = analytics.New(d)

	var buf bytes.Buffer
	logged := func(r *http.Request) *http.Request {
		return withUser(r.WithContext(zerolog.New(&buf).WithContext(r.Context())))
	}

	w := httptest.NewRecorder()
	SuggestHandler(svc)(w, logged(httptest.NewRequest("GET", "/api/schedule/suggest", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("suggest code = %d", w.Code)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), "analytics log failed") {
		t.Fatalf("suggest log = %q", buf.String())
	}

	buf.Reset()
	w = httptest.NewRecorder()
	body := `{"task_id":1,"start":"2024-01-08T09:00:00Z"}`
	ApproveHandler(svc)(w, logged(httptest.NewRequest("POST", "/api/schedule/approve", strings.NewReader(body))))
	if w.Code != http.StatusCreated {
		t.Fatalf("approve code = %d", w.Code)
	}
	if !strings.Contains(buf.String(), "analytics log failed") || !strings.Contains(buf.String(), `"task_id":1`) {
		t.Fatalf("approve log = %q", buf.String())
	}
}
