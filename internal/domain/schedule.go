package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Clock is a wall-clock time of day in minutes after midnight. 1440 means the
// end of the day.
type Clock int

const EndOfDay Clock = 24 * 60

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		if s == "24:00" {
			return EndOfDay, nil
		}
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On places the clock on the calendar day of date, in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, loc)
}

// Weekdays are numbered from Monday (0) to Sunday (6).
const (
	Monday int16 = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

func WeekdayOf(t time.Time) int16 {
	if t.Weekday() == time.Sunday {
		return Sunday
	}
	return int16(t.Weekday()) - 1
}

// StartOfWeek returns the Monday of the week containing date, at midnight in date's location.
func StartOfWeek(date time.Time) time.Time {
	d := StartOfDay(date)
	return d.AddDate(0, 0, -int(WeekdayOf(d)))
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type AvailabilityRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	StaffID     uuid.UUID `bun:"staff_id,notnull,type:uuid"`
	Weekday     int16     `bun:"weekday,notnull"`
	StartTime   Clock     `bun:"start_minute,notnull"`
	EndTime     Clock     `bun:"end_minute,notnull"`
	IsAvailable bool      `bun:"is_available,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r AvailabilityRule) Validate() error {
	if r.Weekday < Monday || r.Weekday > Sunday {
		return errors.New("invalid weekday")
	}
	if r.StartTime < 0 || r.EndTime > EndOfDay {
		return errors.New("rule outside of the day")
	}
	if r.StartTime >= r.EndTime {
		return errors.New("start_time must be before end_time")
	}
	return nil
}

// Window is the rule's interval on the given calendar day.
func (r AvailabilityRule) Window(date time.Time, loc *time.Location) Interval {
	return Interval{Start: r.StartTime.On(date, loc), End: r.EndTime.On(date, loc)}
}

func (r *AvailabilityRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// TimeOffPeriod blocks whole calendar days, StartDate and EndDate inclusive.
type TimeOffPeriod struct {
	bun.BaseModel `bun:"table:time_off_periods"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	StaffID   uuid.UUID `bun:"staff_id,notnull,type:uuid"`
	StartDate time.Time `bun:"start_date,notnull,type:date"`
	EndDate   time.Time `bun:"end_date,notnull,type:date"`
	Reason    string    `bun:"reason"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (p TimeOffPeriod) Validate() error {
	if dayKey(p.StartDate) > dayKey(p.EndDate) {
		return errors.New("start_date must not be after end_date")
	}
	return nil
}

// Covers reports whether the calendar day of date falls inside the period.
func (p TimeOffPeriod) Covers(date time.Time) bool {
	return sameDayOrAfter(date, p.StartDate) && sameDayOrAfter(p.EndDate, date)
}

func (p *TimeOffPeriod) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			p.ID = id
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		p.UpdatedAt = now
	}
	return nil
}

func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// sameDayOrAfter compares calendar dates only, ignoring time of day and zone.
func sameDayOrAfter(a, b time.Time) bool {
	return dayKey(a) >= dayKey(b)
}
