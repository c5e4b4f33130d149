package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smart-scheduler/internal/ai"
	"smart-scheduler/internal/analytics"
	"smart-scheduler/internal/config"
	"smart-scheduler/internal/scheduler"
	"smart-scheduler/internal/store"
)

// Source supplies the snapshot a run is computed from.
type Source interface {
	ListPendingTasks(ctx context.Context, owner int) ([]scheduler.Task, error)
	ListBusyIntervals(ctx context.Context, owner int, from, to time.Time) ([]scheduler.BusyInterval, error)
	GetDependencyCompletionTime(ctx context.Context, owner int, taskID scheduler.TaskID) (time.Time, bool, error)
	ProjectPriorities(ctx context.Context, owner int) (map[scheduler.ProjectID]int, error)
}

// Approver pins an accepted suggestion into the calendar.
type Approver interface {
	ApproveSuggestion(ctx context.Context, owner int, a store.Approval) (store.CalendarEvent, error)
}

// PolicySource returns the active schedule settings.
type PolicySource interface {
	Current() config.Schedule
}

type Options struct {
	// From is the earliest placement instant. Zero means now.
	From    time.Time
	Summary bool
}

// Run is one computed suggestion run as returned to clients.
type Run struct {
	Owner        int               `json:"-"`
	GeneratedAt  time.Time         `json:"generated_at"`
	From         time.Time         `json:"from"`
	Policy       config.PolicyFile `json:"policy"`
	Result       scheduler.Result  `json:"result"`
	Summary      string            `json:"summary,omitempty"`
	SummaryError string            `json:"summary_error,omitempty"`
}

type Service struct {
	src        Source
	approver   Approver
	policy     PolicySource
	summarizer ai.Summarizer
	events     *analytics.Logger
	log        zerolog.Logger

	now func() time.Time

	mu     sync.RWMutex
	latest map[int]Run
}

// New wires the service. summarizer and events may be nil.
func New(src Source, approver Approver, policy PolicySource, summarizer ai.Summarizer, events *analytics.Logger, log zerolog.Logger) *Service {
	return &Service{
		src:        src,
		approver:   approver,
		policy:     policy,
		summarizer: summarizer,
		events:     events,
		log:        log.With().Str("component", "schedule").Logger(),
		now:        time.Now,
		latest:     map[int]Run{},
	}
}

// Suggest builds a snapshot for owner, runs the engine and caches the run
// as the owner's latest. A structural or policy failure returns the error
// with the failed result.
func (s *Service) Suggest(ctx context.Context, owner int, opts Options) (Run, error) {
	sched := s.policy.Current()
	now := s.now()
	from := opts.From
	if from.IsZero() {
		from = now
	}

	req, err := s.snapshot(ctx, owner, sched, from, now)
	if err != nil {
		return Run{}, err
	}

	started := time.Now()
	res, err := scheduler.Suggest(req)
	run := Run{
		Owner:       owner,
		GeneratedAt: now.UTC(),
		From:        from,
		Policy:      sched.File(),
		Result:      res,
	}
	if err != nil {
		s.log.Warn().Err(err).Int("owner", owner).Int("tasks", len(req.Tasks)).Msg("suggest failed")
		return run, err
	}
	s.log.Info().
		Int("owner", owner).
		Int("tasks", len(req.Tasks)).
		Int("busy", len(req.Busy)).
		Int("placed", len(res.Suggestions)).
		Int("unscheduled", len(res.Unscheduled)).
		Dur("elapsed", time.Since(started)).
		Msg("suggest")

	if opts.Summary {
		s.summarize(ctx, &run)
	}

	s.mu.Lock()
	s.latest[owner] = run
	s.mu.Unlock()
	return run, nil
}

func (s *Service) summarize(ctx context.Context, run *Run) {
	if s.summarizer == nil {
		run.SummaryError = ai.ErrDisabled.Error()
		return
	}
	text, err := s.summarizer.Summarize(ctx, run.Result.Suggestions)
	if err != nil {
		if !errors.Is(err, ai.ErrDisabled) {
			s.log.Warn().Err(err).Int("owner", run.Owner).Msg("summary failed")
		}
		run.SummaryError = err.Error()
		return
	}
	run.Summary = text
}

func (s *Service) snapshot(ctx context.Context, owner int, sched config.Schedule, from, now time.Time) (scheduler.Request, error) {
	tasks, err := s.src.ListPendingTasks(ctx, owner)
	if err != nil {
		return scheduler.Request{}, err
	}
	// open-ended: the cursor can run well past the horizon of the first task
	busy, err := s.src.ListBusyIntervals(ctx, owner, from, time.Time{})
	if err != nil {
		return scheduler.Request{}, err
	}
	prios, err := s.src.ProjectPriorities(ctx, owner)
	if err != nil {
		return scheduler.Request{}, err
	}

	inRequest := make(map[scheduler.TaskID]bool, len(tasks))
	for _, t := range tasks {
		inRequest[t.ID] = true
	}
	completions := map[scheduler.TaskID]time.Time{}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if inRequest[dep] {
				continue
			}
			if _, seen := completions[dep]; seen {
				continue
			}
			at, ok, err := s.src.GetDependencyCompletionTime(ctx, owner, dep)
			if err != nil {
				return scheduler.Request{}, err
			}
			if ok {
				completions[dep] = at
			}
		}
	}

	req := scheduler.NewRequest(tasks, busy, sched.Policy)
	req.Buffer = sched.Buffer
	req.Horizon = sched.Horizon
	req.Start = from
	req.Now = now
	req.ProjectPriorities = prios
	req.Completions = completions
	return req, nil
}

// Latest returns the last successful run for owner.
func (s *Service) Latest(owner int) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[owner]
	return r, ok
}

// Approve pins a suggested slot. The cached run is left alone; the next
// run sees the new calendar event as busy time.
func (s *Service) Approve(ctx context.Context, owner int, a store.Approval) (store.CalendarEvent, error) {
	ev, err := s.approver.ApproveSuggestion(ctx, owner, a)
	if err != nil {
		return store.CalendarEvent{}, err
	}
	s.log.Info().Int("owner", owner).Int64("task_id", a.TaskID).Time("start", ev.Start).Msg("suggestion approved")
	return ev, nil
}

// Policy returns the active schedule settings in file form.
func (s *Service) Policy() config.PolicyFile {
	return s.policy.Current().File()
}

// Events exposes the analytics logger for the handlers.
func (s *Service) Events() *analytics.Logger { return s.events }
