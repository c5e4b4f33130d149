// Package digest refreshes each configured owner's latest suggestion run on
// a cron schedule, so /api/schedule/latest stays warm without a client
// asking for it.
package digest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"smart-scheduler/internal/analytics"
	"smart-scheduler/internal/schedule"
	"smart-scheduler/internal/scheduler"
)

type Suggester interface {
	Suggest(ctx context.Context, owner int, opts schedule.Options) (schedule.Run, error)
}

type Refresher struct {
	expr   string
	owners []int
	svc    Suggester
	events *analytics.Logger
	log    zerolog.Logger

	// Summary asks the summarizer for a text plan on every refresh.
	Summary bool

	parser cron.Parser

	mu  sync.Mutex
	c   *cron.Cron
	ctx context.Context
	loc *time.Location
}

// New validates expr (five fields or a descriptor such as "@hourly").
func New(expr string, owners []int, svc Suggester, events *analytics.Logger, log zerolog.Logger) (*Refresher, error) {
	r := &Refresher{
		expr:   strings.TrimSpace(expr),
		owners: append([]int(nil), owners...),
		svc:    svc,
		events: events,
		log:    log.With().Str("component", "digest").Logger(),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	if _, err := r.parser.Parse(r.expr); err != nil {
		return nil, fmt.Errorf("refresh cron %q: %w", r.expr, err)
	}
	return r, nil
}

// Start registers the job and starts the cron loop in loc. It returns
// immediately; Stop ends it.
func (r *Refresher) Start(ctx context.Context, loc *time.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}
	return r.startLocked(ctx, loc)
}

// Relocate restarts a running refresher in loc. It does nothing when the
// refresher is stopped or already runs in loc.
func (r *Refresher) Relocate(loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil || r.loc.String() == loc.String() {
		return nil
	}
	<-r.c.Stop().Done()
	r.c = nil
	return r.startLocked(r.ctx, loc)
}

func (r *Refresher) startLocked(ctx context.Context, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithParser(r.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(r.expr, func() { r.RunOnce(ctx) }); err != nil {
		return err
	}
	c.Start()
	r.c, r.ctx, r.loc = c, ctx, loc
	r.log.Info().Str("expr", r.expr).Str("tz", loc.String()).Ints("owners", r.owners).Msg("refresh started")
	return nil
}

// Stop waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce refreshes every owner in turn. A failing owner does not stop the
// others. It returns the number of successful refreshes.
func (r *Refresher) RunOnce(ctx context.Context) int {
	ok := 0
	for _, owner := range r.owners {
		if ctx.Err() != nil {
			break
		}
		run, err := r.svc.Suggest(ctx, owner, schedule.Options{Summary: r.Summary})
		if err != nil {
			ev := r.log.Error()
			if scheduler.IsFatal(err) {
				ev = r.log.Warn()
			}
			ev.Err(err).Int("owner", owner).Msg("refresh failed")
			continue
		}
		ok++
		props := map[string]any{
			"placed":      len(run.Result.Suggestions),
			"unscheduled": len(run.Result.Unscheduled),
		}
		if err := r.events.Log(ctx, analytics.System(owner), analytics.EventScheduleRefreshed, props, analytics.NewSourceKey()); err != nil {
			r.log.Warn().Err(err).Int("owner", owner).Msg("analytics log failed")
		}
	}
	r.log.Debug().Int("owners", len(r.owners)).Int("ok", ok).Msg("refresh done")
	return ok
}
