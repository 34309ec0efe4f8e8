package domain

import (
	"sort"
	"time"
)

// Interval is a half-open time window [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) IsEmpty() bool {
	return !i.End.After(i.Start)
}

// Overlaps reports whether the two windows share any instant. Adjacent windows
// (one ends exactly where the other starts) do not overlap, and an empty
// window overlaps nothing.
func (i Interval) Overlaps(o Interval) bool {
	return !i.IsEmpty() && !o.IsEmpty() &&
		i.Start.Before(o.End) && i.End.After(o.Start)
}

// Subtract removes every busy window from base and returns the remaining free
// sub-intervals sorted by start. Busy windows may arrive in any order and may
// extend beyond base; the result does not depend on their order.
func Subtract(base Interval, busy []Interval) []Interval {
	if base.IsEmpty() {
		return nil
	}

	working := []Interval{base}
	for _, b := range busy {
		if b.IsEmpty() {
			continue
		}
		next := make([]Interval, 0, len(working)+1)
		for _, w := range working {
			if !w.Overlaps(b) {
				next = append(next, w)
				continue
			}
			if b.Start.After(w.Start) {
				next = append(next, Interval{Start: w.Start, End: b.Start})
			}
			if b.End.Before(w.End) {
				next = append(next, Interval{Start: b.End, End: w.End})
			}
		}
		working = next
	}

	out := working[:0]
	for _, w := range working {
		if !w.IsEmpty() {
			out = append(out, w)
		}
	}
	sortIntervals(out)
	return out
}

// Union merges overlapping or touching windows into maximal contiguous ones.
func Union(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]Interval, 0, len(in))
	for _, i := range in {
		if !i.IsEmpty() {
			sorted = append(sorted, i)
		}
	}
	sortIntervals(sorted)

	out := make([]Interval, 0, len(sorted))
	for _, i := range sorted {
		if n := len(out); n > 0 && !i.Start.After(out[n-1].End) {
			if i.End.After(out[n-1].End) {
				out[n-1].End = i.End
			}
			continue
		}
		out = append(out, i)
	}
	return out
}

func sortIntervals(in []Interval) {
	sort.Slice(in, func(a, b int) bool {
		if in[a].Start.Equal(in[b].Start) {
			return in[a].End.Before(in[b].End)
		}
		return in[a].Start.Before(in[b].Start)
	})
}
