package scheduler

import (
	"fmt"
	"strings"
	"time"
)

type WindowMode string

const (
	// ModeInside makes the hour range the available time.
	ModeInside WindowMode = "inside"
	// ModeOutside makes everything but the hour range available.
	ModeOutside WindowMode = "outside"
)

// ParseWindowMode accepts "inside" and "outside" (case-insensitive); empty
// means inside.
func ParseWindowMode(s string) (WindowMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeInside):
		return ModeInside, nil
	case string(ModeOutside):
		return ModeOutside, nil
	}
	return "", fmt.Errorf("unknown window mode %q", s)
}

// ParseWeekday accepts full English names and three-letter abbreviations.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if key == name || key == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// maxBoundaryDays bounds every boundary walk. Seven days cover a full week of
// excluded weekdays; the extra day covers a window that closes at midnight.
const maxBoundaryDays = 8

// Policy decides which instants are eligible for placement.
//
// The hour range is [StartHour, EndHour) on every weekday not listed in
// ExcludedWeekdays. Mode selects whether that range or its complement is the
// available time; excluded weekdays are unavailable in both modes.
type Policy struct {
	Location         *time.Location
	ExcludedWeekdays []time.Weekday
	StartHour        int
	EndHour          int
	Mode             WindowMode
}

// DefaultPolicy is weekdays 09:00-17:00 UTC, inside mode.
func DefaultPolicy() Policy {
	return Policy{
		Location:         time.UTC,
		ExcludedWeekdays: []time.Weekday{time.Saturday, time.Sunday},
		StartHour:        9,
		EndHour:          17,
		Mode:             ModeInside,
	}
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) outside() bool { return p.Mode == ModeOutside }

func (p Policy) excluded(d time.Weekday) bool {
	for _, x := range p.ExcludedWeekdays {
		if x == d {
			return true
		}
	}
	return false
}

// Validate rejects policies under which no instant can ever be available.
func (p Policy) Validate() error {
	if p.Mode != "" && p.Mode != ModeInside && p.Mode != ModeOutside {
		return policyErrorf("unknown mode %q", p.Mode)
	}
	if p.StartHour < 0 || p.StartHour > 24 || p.EndHour < 0 || p.EndHour > 24 {
		return policyErrorf("hour range %d-%d outside 0-24", p.StartHour, p.EndHour)
	}
	if p.StartHour >= p.EndHour {
		return policyErrorf("window %02d:00-%02d:00 has no width", p.StartHour, p.EndHour)
	}
	if p.outside() && p.StartHour == 0 && p.EndHour == 24 {
		return policyErrorf("outside mode with a full-day window leaves nothing available")
	}
	allExcluded := true
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !p.excluded(d) {
			allExcluded = false
			break
		}
	}
	if allExcluded {
		return policyErrorf("every weekday is excluded")
	}
	return nil
}

// IsAvailable reports whether t lies in the available window.
func (p Policy) IsAvailable(t time.Time) bool {
	t = t.In(p.loc())
	if p.excluded(t.Weekday()) {
		return false
	}
	h := t.Hour()
	inRange := h >= p.StartHour && h < p.EndHour
	return inRange != p.outside()
}

// NextBoundary returns t when it is available, otherwise the first later
// instant at which availability flips on.
//
// Availability only changes at midnight and at the window's opening and
// closing hours, so the walk visits those candidates over at most
// maxBoundaryDays days and fails with ErrPolicyUnsatisfiable past that.
func (p Policy) NextBoundary(t time.Time) (time.Time, error) {
	t = t.In(p.loc())
	if p.IsAvailable(t) {
		return t, nil
	}
	for _, c := range p.boundariesAfter(t) {
		if p.IsAvailable(c) {
			return c, nil
		}
	}
	return time.Time{}, policyErrorf("nothing available within %d days of %s", maxBoundaryDays, t.Format(time.RFC3339))
}

// windowEnd returns the end of the available run containing t. ok is false
// when the run does not end within the walk (an always-available policy).
func (p Policy) windowEnd(t time.Time) (end time.Time, ok bool) {
	t = t.In(p.loc())
	for _, c := range p.boundariesAfter(t) {
		if !p.IsAvailable(c) {
			return c, true
		}
	}
	return time.Time{}, false
}

// boundariesAfter lists, in increasing order, the candidate flip instants
// strictly after t.
func (p Policy) boundariesAfter(t time.Time) []time.Time {
	loc := p.loc()
	y, m, d := t.Date()
	hours := [3]int{0, p.StartHour, p.EndHour}

	out := make([]time.Time, 0, len(hours)*(maxBoundaryDays+1))
	var last time.Time
	for k := 0; k <= maxBoundaryDays; k++ {
		for _, h := range hours {
			c := time.Date(y, m, d+k, h, 0, 0, 0, loc)
			if !c.After(t) || !c.After(last) {
				continue
			}
			out = append(out, c)
			last = c
		}
	}
	return out
}
