package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Granularity string

const (
	GranularityDaily   Granularity = "DAILY"
	GranularityWeekly  Granularity = "WEEKLY"
	GranularityMonthly Granularity = "MONTHLY"
)

func (g Granularity) Valid() bool {
	switch g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	default:
		return false
	}
}

type DayAvailability struct {
	Date    time.Time  `json:"date"`
	Weekday int16      `json:"weekday"`
	Slots   []Interval `json:"slots"`
}

type WeekAvailability struct {
	WeekStart time.Time         `json:"week_start"`
	WeekEnd   time.Time         `json:"week_end"`
	Days      []DayAvailability `json:"days"`
}

type MonthAvailability struct {
	Year  int                `json:"year"`
	Month time.Month         `json:"month"`
	Weeks []WeekAvailability `json:"weeks"`
}

// AvailabilityResult holds exactly one of Daily, Weekly or Monthly, unless
// NoSchedule is set, in which case the staff member has no rules at all and
// none of them is present.
type AvailabilityResult struct {
	StaffID     uuid.UUID          `json:"staff_id"`
	Granularity Granularity        `json:"granularity"`
	NoSchedule  bool               `json:"no_schedule"`
	Daily       *DayAvailability   `json:"daily,omitempty"`
	Weekly      *WeekAvailability  `json:"weekly,omitempty"`
	Monthly     *MonthAvailability `json:"monthly,omitempty"`
}

// CompanyAvailability lists the availability of every active staff member of a
// company that has at least one rule, ordered by staff id.
type CompanyAvailability struct {
	CompanyID   uuid.UUID            `json:"company_id"`
	Granularity Granularity          `json:"granularity"`
	Staff       []AvailabilityResult `json:"staff"`
}

// ResolveInput carries everything needed to compute free slots for one staff
// member. Assignments must already be restricted to active bookings.
type ResolveInput struct {
	StaffID     uuid.UUID
	Rules       []AvailabilityRule
	TimeOffs    []TimeOffPeriod
	Assignments []BookingServiceAssignment
	Granularity Granularity
	Anchor      time.Time
	MinDuration time.Duration
	Location    *time.Location
}

var ErrUnknownGranularity = errors.New("unknown granularity")

// WindowFor returns the calendar days covered by a request: the anchor day,
// seven days from the anchor, or the whole month containing the anchor. The
// returned interval runs from midnight of the first day to midnight after the
// last one.
func WindowFor(g Granularity, anchor time.Time, loc *time.Location) (Interval, error) {
	if loc == nil {
		loc = time.UTC
	}
	day := StartOfDay(anchor.In(loc))
	switch g {
	case GranularityDaily:
		return Interval{Start: day, End: day.AddDate(0, 0, 1)}, nil
	case GranularityWeekly:
		return Interval{Start: day, End: day.AddDate(0, 0, 7)}, nil
	case GranularityMonthly:
		first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, loc)
		last := first.AddDate(0, 1, -1)
		return Interval{Start: first, End: last.AddDate(0, 0, 1)}, nil
	default:
		return Interval{}, ErrUnknownGranularity
	}
}

func Resolve(in ResolveInput) (AvailabilityResult, error) {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	res := AvailabilityResult{StaffID: in.StaffID, Granularity: in.Granularity}

	window, err := WindowFor(in.Granularity, in.Anchor, loc)
	if err != nil {
		return AvailabilityResult{}, err
	}
	if len(in.Rules) == 0 {
		res.NoSchedule = true
		return res, nil
	}

	r := resolver{in: in, loc: loc}
	switch in.Granularity {
	case GranularityDaily:
		d := r.day(window.Start)
		res.Daily = &d
	case GranularityWeekly:
		w := r.week(window.Start, window.End)
		res.Weekly = &w
	case GranularityMonthly:
		m := MonthAvailability{Year: window.Start.Year(), Month: window.Start.Month()}
		for ws := window.Start; ws.Before(window.End); {
			we := StartOfWeek(ws).AddDate(0, 0, 7)
			if we.After(window.End) {
				we = window.End
			}
			m.Weeks = append(m.Weeks, r.week(ws, we))
			ws = we
		}
		res.Monthly = &m
	}
	return res, nil
}

type resolver struct {
	in  ResolveInput
	loc *time.Location
}

// week resolves the days in [from, to); WeekEnd is the last day included.
func (r resolver) week(from, to time.Time) WeekAvailability {
	w := WeekAvailability{WeekStart: from}
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		w.Days = append(w.Days, r.day(d))
		w.WeekEnd = d
	}
	return w
}

func (r resolver) day(date time.Time) DayAvailability {
	date = StartOfDay(date.In(r.loc))
	out := DayAvailability{Date: date, Weekday: WeekdayOf(date), Slots: []Interval{}}
	whole := Interval{Start: date, End: date.AddDate(0, 0, 1)}

	busy := make([]Interval, 0, len(r.in.Assignments)+1)
	for _, p := range r.in.TimeOffs {
		if p.Covers(date) {
			busy = append(busy, whole)
			break
		}
	}
	for _, a := range r.in.Assignments {
		if w := a.Window(); w.Overlaps(whole) {
			busy = append(busy, w)
		}
	}

	var free []Interval
	for _, rule := range r.in.Rules {
		if !rule.IsAvailable || rule.Weekday != out.Weekday {
			continue
		}
		free = append(free, Subtract(rule.Window(date, r.loc), busy)...)
	}

	for _, s := range Union(free) {
		if r.in.MinDuration > 0 && s.Duration() < r.in.MinDuration {
			continue
		}
		out.Slots = append(out.Slots, s)
	}
	return out
}
