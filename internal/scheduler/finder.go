package scheduler

import (
	"time"
)

// slotFinder searches the working calendar for the earliest placement that
// is free of busy time and stays inside one available window.
type slotFinder struct {
	policy  Policy
	busy    *busySet
	horizon time.Duration
}

// find returns the earliest [t, t+d) with t >= t0. Every retry moves t
// strictly forward, and the search gives up once t passes t0+horizon.
func (f *slotFinder) find(id TaskID, t0 time.Time, d time.Duration) (Interval, error) {
	limit := t0.Add(f.horizon)
	t := t0
	for {
		next, err := f.policy.NextBoundary(t)
		if err != nil {
			return Interval{}, err
		}
		t = next
		if t.After(limit) {
			return Interval{}, &NoFeasibleSlotError{TaskID: id, Horizon: f.horizon}
		}

		end := t.Add(d)
		if closeAt, ok := f.policy.windowEnd(t); ok && end.After(closeAt) {
			// Would spill past the close of this window; try the next one.
			t = closeAt
			continue
		}
		if b, ok := f.busy.firstOverlap(Interval{Start: t, End: end}); ok {
			t = b.End
			continue
		}
		return Interval{Start: t, End: end}, nil
	}
}
