package scheduler

import (
	"sort"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

func (iv Interval) Valid() bool { return iv.Start.Before(iv.End) }

func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// In normalizes both bounds into loc.
func (iv Interval) In(loc *time.Location) Interval {
	return Interval{Start: iv.Start.In(loc), End: iv.End.In(loc)}
}

// Overlaps reports whether a and b share any instant. Touching intervals
// (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// MergeSorted sorts a copy of in by start and collapses overlapping or
// adjacent entries into a minimal disjoint set.
func MergeSorted(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]Interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].End.Before(sorted[j].End)
	})

	out := make([]Interval, 0, len(sorted))
	out = append(out, sorted[0])
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// busySet is the working calendar of one run: sorted, merged, disjoint.
type busySet struct {
	ivs []Interval
}

func newBusySet(ivs []Interval) *busySet {
	return &busySet{ivs: MergeSorted(ivs)}
}

// firstOverlap returns the earliest busy interval overlapping iv.
func (b *busySet) firstOverlap(iv Interval) (Interval, bool) {
	// Disjoint and sorted by start, so ends are strictly increasing too.
	i := sort.Search(len(b.ivs), func(i int) bool { return b.ivs[i].End.After(iv.Start) })
	if i < len(b.ivs) && Overlaps(b.ivs[i], iv) {
		return b.ivs[i], true
	}
	return Interval{}, false
}

func (b *busySet) insert(iv Interval) {
	next := make([]Interval, len(b.ivs), len(b.ivs)+1)
	copy(next, b.ivs)
	b.ivs = MergeSorted(append(next, iv))
}
