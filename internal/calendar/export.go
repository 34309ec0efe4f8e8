package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"appointly/backend/internal/domain"
)

const productID = "-//appointly//booking engine//EN"

// Export renders a booking as an iCalendar document with one event per
// assignment. serviceNames may miss entries; those legs get a generic summary.
func Export(b domain.Booking, as []domain.BookingServiceAssignment, serviceNames map[uuid.UUID]string) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	stamp := b.UpdatedAt
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}

	for _, a := range as {
		uid := a.ID.String()
		if a.ID == uuid.Nil {
			uid = fmt.Sprintf("%s-%d", b.ID, a.Position)
		}
		ev := cal.AddEvent(uid + "@appointly")
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(a.StartAt.UTC())
		ev.SetEndAt(a.EndAt.UTC())
		ev.SetSummary(summary(serviceNames[a.ServiceID], a.Position, len(as)))
		if a.Notes != "" {
			ev.SetDescription(a.Notes)
		} else if b.Notes != "" {
			ev.SetDescription(b.Notes)
		}
		ev.SetStatus(eventStatus(b.Status))
	}

	return cal.Serialize()
}

func summary(name string, position, total int) string {
	if name == "" {
		name = "Appointment"
	}
	if total > 1 {
		return fmt.Sprintf("%s (%d/%d)", name, position+1, total)
	}
	return name
}

func eventStatus(s domain.BookingStatus) ics.ObjectStatus {
	switch s {
	case domain.BookingStatusConfirmed, domain.BookingStatusCompleted:
		return ics.ObjectStatusConfirmed
	case domain.BookingStatusCancelled, domain.BookingStatusNoShow:
		return ics.ObjectStatusCancelled
	default:
		return ics.ObjectStatusTentative
	}
}
