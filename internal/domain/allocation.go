package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Leg is one resolved service of a booking request, ready to be placed.
type Leg struct {
	ServiceID uuid.UUID
	StaffID   uuid.UUID
	Duration  time.Duration
	Price     int64
	Notes     string
}

// Plan is the cursor layout of a booking: the legs placed back to back from Start.
type Plan struct {
	Start       time.Time
	End         time.Time
	TotalPrice  int64
	Assignments []BookingServiceAssignment
}

// PlanLegs walks the legs in order with a cursor starting at start. Each leg
// occupies [cursor, cursor+duration) and moves the cursor to its end.
func PlanLegs(start time.Time, legs []Leg) Plan {
	p := Plan{
		Start:       start,
		Assignments: make([]BookingServiceAssignment, 0, len(legs)),
	}
	cursor := start
	for i, l := range legs {
		end := cursor.Add(l.Duration)
		p.Assignments = append(p.Assignments, BookingServiceAssignment{
			Position:  i,
			ServiceID: l.ServiceID,
			StaffID:   l.StaffID,
			StartAt:   cursor,
			EndAt:     end,
			Notes:     l.Notes,
			Active:    true,
		})
		p.TotalPrice += l.Price
		cursor = end
	}
	p.End = cursor
	return p
}

// StaffIDs returns the distinct staff members of the plan.
func (p Plan) StaffIDs() []uuid.UUID {
	return DistinctStaff(p.Assignments)
}

func DistinctStaff(as []BookingServiceAssignment) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(as))
	out := make([]uuid.UUID, 0, len(as))
	for _, a := range as {
		if _, ok := seen[a.StaffID]; ok {
			continue
		}
		seen[a.StaffID] = struct{}{}
		out = append(out, a.StaffID)
	}
	return out
}

// InvariantViolation reports an attempted write that would break the booking
// layout. It is never caused by user input.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "booking invariant violated: " + e.Reason
}

func invariantf(format string, args ...any) error {
	return &InvariantViolation{Reason: fmt.Sprintf(format, args...)}
}

// CheckLayout verifies that assignments are back to back in position order and
// span exactly [b.StartAt, b.EndAt).
func CheckLayout(b Booking, as []BookingServiceAssignment) error {
	if len(as) == 0 {
		return invariantf("booking %s has no assignments", b.ID)
	}
	if !as[0].StartAt.Equal(b.StartAt) {
		return invariantf("first assignment starts at %s, booking at %s", as[0].StartAt, b.StartAt)
	}
	for i, a := range as {
		if a.Position != i {
			return invariantf("assignment %d has position %d", i, a.Position)
		}
		if !a.EndAt.After(a.StartAt) {
			return invariantf("assignment %d has an empty window", i)
		}
		if i > 0 && !as[i-1].EndAt.Equal(a.StartAt) {
			return invariantf("assignment %d does not start where assignment %d ends", i, i-1)
		}
	}
	if last := as[len(as)-1]; !last.EndAt.Equal(b.EndAt) {
		return invariantf("last assignment ends at %s, booking at %s", last.EndAt, b.EndAt)
	}
	return nil
}
