package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBookingStatus_CanTransition(t *testing.T) {
	all := []BookingStatus{BookingStatusScheduled, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow}
	allowed := map[[2]BookingStatus]bool{
		{BookingStatusScheduled, BookingStatusConfirmed}: true,
		{BookingStatusScheduled, BookingStatusCancelled}: true,
		{BookingStatusScheduled, BookingStatusNoShow}:    true,
		{BookingStatusConfirmed, BookingStatusCompleted}: true,
		{BookingStatusConfirmed, BookingStatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]BookingStatus{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}

	for _, s := range []BookingStatus{BookingStatusCompleted, BookingStatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if BookingStatusNoShow.IsActive() || !BookingStatusConfirmed.IsActive() {
		t.Errorf("IsActive mismatch")
	}
}

func TestPlanLegs_CursorLayout(t *testing.T) {
	start := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	cut := uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	color := uuid.MustParse("00000000-0000-0000-0000-0000000000c2")
	stylistA := uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	stylistB := uuid.MustParse("00000000-0000-0000-0000-0000000000b1")

	p := PlanLegs(start, []Leg{
		{ServiceID: cut, StaffID: stylistA, Duration: 30 * time.Minute, Price: 2500},
		{ServiceID: color, StaffID: stylistB, Duration: 45 * time.Minute, Price: 4000},
		{ServiceID: cut, StaffID: stylistA, Duration: 15 * time.Minute, Price: 500},
	})

	wantStarts := []time.Time{start, start.Add(30 * time.Minute), start.Add(75 * time.Minute)}
	for i, a := range p.Assignments {
		if !a.StartAt.Equal(wantStarts[i]) {
			t.Fatalf("assignment %d starts at %v, want %v", i, a.StartAt, wantStarts[i])
		}
		if a.Position != i || !a.Active {
			t.Fatalf("assignment %d = %+v", i, a)
		}
	}
	if !p.End.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("End = %v", p.End)
	}
	if p.TotalPrice != 7000 {
		t.Fatalf("TotalPrice = %d, want 7000", p.TotalPrice)
	}
	if ids := p.StaffIDs(); len(ids) != 2 || ids[0] != stylistA || ids[1] != stylistB {
		t.Fatalf("StaffIDs = %v", ids)
	}

	b := Booking{StartAt: p.Start, EndAt: p.End}
	if err := CheckLayout(b, p.Assignments); err != nil {
		t.Fatalf("CheckLayout error: %v", err)
	}
}

func TestCheckLayout_Violations(t *testing.T) {
	start := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	p := PlanLegs(start, []Leg{{Duration: 30 * time.Minute}, {Duration: 30 * time.Minute}})
	b := Booking{StartAt: p.Start, EndAt: p.End}

	tests := []struct {
		name   string
		mutate func(b *Booking, as []BookingServiceAssignment) []BookingServiceAssignment
	}{
		{name: "no assignments", mutate: func(_ *Booking, _ []BookingServiceAssignment) []BookingServiceAssignment { return nil }},
		{name: "gap between legs", mutate: func(_ *Booking, as []BookingServiceAssignment) []BookingServiceAssignment {
			as[1].StartAt = as[1].StartAt.Add(time.Minute)
			return as
		}},
		{name: "booking end mismatch", mutate: func(b *Booking, as []BookingServiceAssignment) []BookingServiceAssignment {
			b.EndAt = b.EndAt.Add(time.Minute)
			return as
		}},
		{name: "booking start mismatch", mutate: func(b *Booking, as []BookingServiceAssignment) []BookingServiceAssignment {
			b.StartAt = b.StartAt.Add(-time.Minute)
			return as
		}},
		{name: "out of order positions", mutate: func(_ *Booking, as []BookingServiceAssignment) []BookingServiceAssignment {
			as[0].Position, as[1].Position = 1, 0
			return as
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bb := b
			as := append([]BookingServiceAssignment(nil), p.Assignments...)
			as = tt.mutate(&bb, as)

			err := CheckLayout(bb, as)
			var violation *InvariantViolation
			if !errors.As(err, &violation) {
				t.Fatalf("err = %v, want *InvariantViolation", err)
			}
		})
	}
}

func TestAvailabilityRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    AvailabilityRule
		wantErr bool
	}{
		{name: "ok", rule: AvailabilityRule{Weekday: Friday, StartTime: NewClock(9, 0), EndTime: NewClock(17, 0)}},
		{name: "until midnight", rule: AvailabilityRule{Weekday: Sunday, StartTime: NewClock(20, 0), EndTime: EndOfDay}},
		{name: "start equals end", rule: AvailabilityRule{Weekday: Monday, StartTime: NewClock(9, 0), EndTime: NewClock(9, 0)}, wantErr: true},
		{name: "bad weekday", rule: AvailabilityRule{Weekday: 7, StartTime: NewClock(9, 0), EndTime: NewClock(10, 0)}, wantErr: true},
		{name: "past midnight", rule: AvailabilityRule{Weekday: Monday, StartTime: NewClock(9, 0), EndTime: EndOfDay + 1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeOffPeriod_CoversInclusive(t *testing.T) {
	p := TimeOffPeriod{
		StartDate: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	for day, want := range map[int]bool{7: false, 8: true, 9: true, 10: true, 11: false} {
		d := time.Date(2024, 1, day, 23, 30, 0, 0, time.UTC)
		if got := p.Covers(d); got != want {
			t.Errorf("Covers(Jan %d) = %v, want %v", day, got, want)
		}
	}

	p.StartDate, p.EndDate = p.EndDate, p.StartDate
	if err := p.Validate(); err == nil {
		t.Fatalf("expected reversed period to fail validation")
	}
}

func TestParseClock(t *testing.T) {
	for in, want := range map[string]Clock{"09:30": NewClock(9, 30), "00:00": 0, "24:00": EndOfDay} {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Errorf("ParseClock(%q) = %v, %v; want %v", in, got, err, want)
		}
		if in != "24:00" && got.String() != in {
			t.Errorf("String() = %q, want %q", got.String(), in)
		}
	}
	if _, err := ParseClock("9h"); err == nil {
		t.Errorf("expected error for malformed clock")
	}
}

func TestWeekdayOf(t *testing.T) {
	monday := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got := WeekdayOf(monday.AddDate(0, 0, i)); got != int16(i) {
			t.Errorf("WeekdayOf(+%d) = %d", i, got)
		}
	}
	if got := StartOfWeek(monday.AddDate(0, 0, 6)); !got.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfWeek = %v", got)
	}
}
