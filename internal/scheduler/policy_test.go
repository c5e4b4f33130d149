package scheduler

import (
	"errors"
	"testing"
	"time"
)

// withinWindow reports whether iv lies entirely in one available run.
func withinWindow(p Policy, iv Interval) bool {
	if !p.IsAvailable(iv.Start) {
		return false
	}
	end, ok := p.windowEnd(iv.Start)
	return !ok || !iv.End.After(end)
}

func outsidePolicy() Policy {
	p := DefaultPolicy()
	p.Mode = ModeOutside
	return p
}

func TestPolicyIsAvailable(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
		t      time.Time
		want   bool
	}{
		{"inside before open", DefaultPolicy(), at(0, 8, 59), false},
		{"inside at open", DefaultPolicy(), at(0, 9, 0), true},
		{"inside last minute", DefaultPolicy(), at(0, 16, 59), true},
		{"inside at close", DefaultPolicy(), at(0, 17, 0), false},
		{"inside saturday", DefaultPolicy(), at(5, 10, 0), false},
		{"outside early", outsidePolicy(), at(0, 8, 0), true},
		{"outside working hours", outsidePolicy(), at(0, 10, 0), false},
		{"outside evening", outsidePolicy(), at(0, 17, 0), true},
		{"outside weekend", outsidePolicy(), at(6, 20, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.IsAvailable(tc.t); got != tc.want {
				t.Fatalf("IsAvailable(%s)=%v, want %v", tc.t.Format(time.RFC3339), got, tc.want)
			}
		})
	}
}

func TestPolicyNextBoundary(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
		from   time.Time
		want   time.Time
	}{
		{"already available", DefaultPolicy(), at(0, 10, 15), at(0, 10, 15)},
		{"before open", DefaultPolicy(), at(0, 8, 30), at(0, 9, 0)},
		{"after close", DefaultPolicy(), at(0, 17, 30), at(1, 9, 0)},
		{"friday evening skips weekend", DefaultPolicy(), at(4, 17, 0), at(7, 9, 0)},
		{"sunday", DefaultPolicy(), at(6, 12, 0), at(7, 9, 0)},
		{"outside during work", outsidePolicy(), at(0, 10, 0), at(0, 17, 0)},
		{"outside saturday", outsidePolicy(), at(5, 10, 0), at(7, 0, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.policy.NextBoundary(tc.from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("NextBoundary=%s, want %s", got.Format(time.RFC3339), tc.want.Format(time.RFC3339))
			}
			if !tc.policy.IsAvailable(got) {
				t.Fatalf("boundary %s is not available", got)
			}
		})
	}
}

func TestPolicyWindowEnd(t *testing.T) {
	end, ok := DefaultPolicy().windowEnd(at(0, 10, 0))
	if !ok || !end.Equal(at(0, 17, 0)) {
		t.Fatalf("inside window end: got %v ok=%v", end, ok)
	}

	// An evening run continues through midnight into a working day.
	end, ok = outsidePolicy().windowEnd(at(0, 18, 0))
	if !ok || !end.Equal(at(1, 9, 0)) {
		t.Fatalf("outside window end: got %v ok=%v", end, ok)
	}

	// ...but stops at midnight before an excluded day.
	end, ok = outsidePolicy().windowEnd(at(4, 18, 0))
	if !ok || !end.Equal(at(5, 0, 0)) {
		t.Fatalf("outside friday end: got %v ok=%v", end, ok)
	}

	always := Policy{StartHour: 0, EndHour: 24, Mode: ModeInside}
	if _, ok := always.windowEnd(at(0, 10, 0)); ok {
		t.Fatalf("always-open policy should have no window end")
	}
}

func TestPolicyValidate(t *testing.T) {
	allDays := []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	cases := []struct {
		name   string
		policy Policy
	}{
		{"zero width", Policy{StartHour: 9, EndHour: 9}},
		{"inverted", Policy{StartHour: 17, EndHour: 9}},
		{"out of range", Policy{StartHour: -1, EndHour: 25}},
		{"outside full day", Policy{StartHour: 0, EndHour: 24, Mode: ModeOutside}},
		{"all excluded", Policy{StartHour: 9, EndHour: 17, ExcludedWeekdays: allDays}},
		{"unknown mode", Policy{StartHour: 9, EndHour: 17, Mode: "sideways"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if !errors.Is(err, ErrPolicyUnsatisfiable) {
				t.Fatalf("expected ErrPolicyUnsatisfiable, got %v", err)
			}
		})
	}

	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestPolicyLocation(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	p := DefaultPolicy()
	p.Location = zone

	// 07:30Z is 09:30 local.
	if !p.IsAvailable(at(0, 7, 30)) {
		t.Fatalf("expected 07:30Z to be inside the local window")
	}
	got, err := p.NextBoundary(at(0, 6, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(at(0, 7, 0)) || got.Location() != zone {
		t.Fatalf("expected 09:00 local, got %s", got)
	}
}

func TestParseHelpers(t *testing.T) {
	for in, want := range map[string]time.Weekday{"Saturday": time.Saturday, "sun": time.Sunday, " MON ": time.Monday} {
		got, err := ParseWeekday(in)
		if err != nil || got != want {
			t.Fatalf("ParseWeekday(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseWeekday("funday"); err == nil {
		t.Fatalf("expected error for unknown weekday")
	}
	if m, err := ParseWindowMode(""); err != nil || m != ModeInside {
		t.Fatalf("empty mode should default to inside, got %v %v", m, err)
	}
	if m, err := ParseWindowMode("Outside"); err != nil || m != ModeOutside {
		t.Fatalf("expected outside, got %v %v", m, err)
	}
	if _, err := ParseWindowMode("nearby"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
