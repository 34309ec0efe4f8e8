package domain

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

var staffA = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")

func mondayRule(start, end Clock) AvailabilityRule {
	return AvailabilityRule{StaffID: staffA, Weekday: Monday, StartTime: start, EndTime: end, IsAvailable: true}
}

func TestResolve_DailyScenarios(t *testing.T) {
	monday := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	rule := mondayRule(NewClock(9, 0), NewClock(17, 0))

	tests := []struct {
		name        string
		rules       []AvailabilityRule
		timeOffs    []TimeOffPeriod
		assignments []BookingServiceAssignment
		minDuration time.Duration
		want        []Interval
	}{
		{
			name:  "single rule, nothing booked",
			rules: []AvailabilityRule{rule},
			want:  []Interval{iv(9, 0, 17, 0)},
		},
		{
			name:  "booking splits the day",
			rules: []AvailabilityRule{rule},
			assignments: []BookingServiceAssignment{
				{StaffID: staffA, StartAt: at(10, 0), EndAt: at(10, 30), Active: true},
			},
			want: []Interval{iv(9, 0, 10, 0), iv(10, 30, 17, 0)},
		},
		{
			name:  "min duration drops short slots",
			rules: []AvailabilityRule{rule},
			assignments: []BookingServiceAssignment{
				{StaffID: staffA, StartAt: at(9, 20), EndAt: at(16, 0), Active: true},
			},
			minDuration: 30 * time.Minute,
			want:        []Interval{iv(16, 0, 17, 0)},
		},
		{
			name:  "time off blocks the whole day",
			rules: []AvailabilityRule{rule},
			timeOffs: []TimeOffPeriod{
				{StaffID: staffA, StartDate: monday.AddDate(0, 0, -2), EndDate: monday},
			},
			want: []Interval{},
		},
		{
			name: "split shift",
			rules: []AvailabilityRule{
				mondayRule(NewClock(13, 0), NewClock(17, 0)),
				mondayRule(NewClock(9, 0), NewClock(12, 0)),
			},
			want: []Interval{iv(9, 0, 12, 0), iv(13, 0, 17, 0)},
		},
		{
			name: "touching rules merge",
			rules: []AvailabilityRule{
				mondayRule(NewClock(9, 0), NewClock(12, 0)),
				mondayRule(NewClock(12, 0), NewClock(15, 0)),
			},
			want: []Interval{iv(9, 0, 15, 0)},
		},
		{
			name: "unavailable rules are skipped",
			rules: []AvailabilityRule{
				{StaffID: staffA, Weekday: Monday, StartTime: NewClock(9, 0), EndTime: NewClock(17, 0)},
			},
			want: []Interval{},
		},
		{
			name:  "other weekday rules are skipped",
			rules: []AvailabilityRule{{StaffID: staffA, Weekday: Tuesday, StartTime: NewClock(9, 0), EndTime: NewClock(17, 0), IsAvailable: true}},
			want:  []Interval{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(ResolveInput{
				StaffID:     staffA,
				Rules:       tt.rules,
				TimeOffs:    tt.timeOffs,
				Assignments: tt.assignments,
				Granularity: GranularityDaily,
				Anchor:      monday.Add(15 * time.Hour),
				MinDuration: tt.minDuration,
				Location:    time.UTC,
			})
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if res.NoSchedule {
				t.Fatalf("NoSchedule set for a staff member with rules")
			}
			if res.Daily == nil || res.Weekly != nil || res.Monthly != nil {
				t.Fatalf("expected only a daily result, got %+v", res)
			}
			if !res.Daily.Date.Equal(monday) {
				t.Fatalf("Date = %v, want %v", res.Daily.Date, monday)
			}
			if !reflect.DeepEqual(res.Daily.Slots, tt.want) {
				t.Fatalf("slots = %v, want %v", res.Daily.Slots, tt.want)
			}
		})
	}
}

func TestResolve_NoSchedule(t *testing.T) {
	for _, g := range []Granularity{GranularityDaily, GranularityWeekly, GranularityMonthly} {
		res, err := Resolve(ResolveInput{StaffID: staffA, Granularity: g, Anchor: at(9, 0)})
		if err != nil {
			t.Fatalf("%s: Resolve error: %v", g, err)
		}
		if !res.NoSchedule {
			t.Fatalf("%s: NoSchedule = false", g)
		}
		if res.Daily != nil || res.Weekly != nil || res.Monthly != nil {
			t.Fatalf("%s: unexpected slots in a no-schedule result", g)
		}
	}
}

func TestResolve_UnknownGranularity(t *testing.T) {
	_, err := Resolve(ResolveInput{Rules: []AvailabilityRule{mondayRule(0, 60)}, Granularity: "HOURLY", Anchor: at(9, 0)})
	if err != ErrUnknownGranularity {
		t.Fatalf("err = %v, want ErrUnknownGranularity", err)
	}
}

func TestResolve_WeeklyStartsAtAnchor(t *testing.T) {
	wednesday := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rules := []AvailabilityRule{mondayRule(NewClock(9, 0), NewClock(17, 0))}

	res, err := Resolve(ResolveInput{StaffID: staffA, Rules: rules, Granularity: GranularityWeekly, Anchor: wednesday})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	w := res.Weekly
	if w == nil || len(w.Days) != 7 {
		t.Fatalf("weekly result = %+v, want 7 days", w)
	}
	if !w.WeekStart.Equal(wednesday) || !w.WeekEnd.Equal(wednesday.AddDate(0, 0, 6)) {
		t.Fatalf("week = %v..%v", w.WeekStart, w.WeekEnd)
	}
	for _, d := range w.Days {
		if d.Weekday == Monday {
			if len(d.Slots) != 1 || d.Slots[0].Start.Hour() != 9 {
				t.Fatalf("monday %v slots = %v", d.Date, d.Slots)
			}
			continue
		}
		if len(d.Slots) != 0 {
			t.Fatalf("%v should have no slots, got %v", d.Date, d.Slots)
		}
	}
}

func TestResolve_MonthlyNestsMondayWeeks(t *testing.T) {
	// February 2024 starts on a Thursday and has 29 days.
	anchor := time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)
	rules := []AvailabilityRule{mondayRule(NewClock(9, 0), NewClock(10, 0))}

	res, err := Resolve(ResolveInput{StaffID: staffA, Rules: rules, Granularity: GranularityMonthly, Anchor: anchor})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	m := res.Monthly
	if m == nil || m.Year != 2024 || m.Month != time.February {
		t.Fatalf("monthly result = %+v", m)
	}
	if len(m.Weeks) != 5 {
		t.Fatalf("len(weeks) = %d, want 5", len(m.Weeks))
	}

	days := 0
	mondays := 0
	for i, w := range m.Weeks {
		if i > 0 && WeekdayOf(w.WeekStart) != Monday {
			t.Fatalf("week %d starts on weekday %d", i, WeekdayOf(w.WeekStart))
		}
		for _, d := range w.Days {
			if d.Date.Month() != time.February {
				t.Fatalf("day %v outside of the month", d.Date)
			}
			if len(d.Slots) > 0 {
				mondays++
			}
			days++
		}
	}
	if days != 29 || mondays != 4 {
		t.Fatalf("days = %d, mondays with slots = %d; want 29 and 4", days, mondays)
	}
	if len(m.Weeks[0].Days) != 4 || len(m.Weeks[4].Days) != 4 {
		t.Fatalf("clipped weeks have %d and %d days", len(m.Weeks[0].Days), len(m.Weeks[4].Days))
	}
}

func TestResolve_AssignmentOverlappingMidnight(t *testing.T) {
	monday := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	rules := []AvailabilityRule{mondayRule(NewClock(0, 0), NewClock(2, 0))}
	late := BookingServiceAssignment{StaffID: staffA, StartAt: monday.Add(-30 * time.Minute), EndAt: monday.Add(time.Hour), Active: true}

	res, err := Resolve(ResolveInput{StaffID: staffA, Rules: rules, Assignments: []BookingServiceAssignment{late}, Granularity: GranularityDaily, Anchor: monday})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := []Interval{{Start: monday.Add(time.Hour), End: monday.Add(2 * time.Hour)}}
	if !reflect.DeepEqual(res.Daily.Slots, want) {
		t.Fatalf("slots = %v, want %v", res.Daily.Slots, want)
	}
}

func TestResolve_LocationShiftsDayBoundaries(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	rules := []AvailabilityRule{mondayRule(NewClock(9, 0), NewClock(17, 0))}
	// Sunday 23:00 UTC is already Monday in UTC+2.
	anchor := time.Date(2024, 1, 7, 23, 0, 0, 0, time.UTC)

	res, err := Resolve(ResolveInput{StaffID: staffA, Rules: rules, Granularity: GranularityDaily, Anchor: anchor, Location: loc})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(res.Daily.Slots) != 1 {
		t.Fatalf("slots = %v, want one", res.Daily.Slots)
	}
	if got := res.Daily.Slots[0].Start.UTC(); !got.Equal(time.Date(2024, 1, 8, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("slot starts at %v UTC", got)
	}
}

func TestWindowFor_Monthly(t *testing.T) {
	w, err := WindowFor(GranularityMonthly, time.Date(2023, 12, 31, 18, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("WindowFor error: %v", err)
	}
	if !w.Start.Equal(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)) || !w.End.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("window = %v", w)
	}
}
