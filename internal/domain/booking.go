package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "scheduled"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusScheduled: {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether bookings in this status hold staff time.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusScheduled || s == BookingStatusConfirmed
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusScheduled, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID         uuid.UUID     `bun:"id,pk,type:uuid"`
	CustomerID uuid.UUID     `bun:"customer_id,notnull,type:uuid"`
	CompanyID  uuid.UUID     `bun:"company_id,notnull,type:uuid"`
	Status     BookingStatus `bun:"status,notnull"`
	StartAt    time.Time     `bun:"start_at,notnull"`
	EndAt      time.Time     `bun:"end_at,notnull"`
	TotalPrice int64         `bun:"total_price,notnull"`
	Notes      string        `bun:"notes"`
	CreatedAt  time.Time     `bun:"created_at,notnull"`
	UpdatedAt  time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.Status == "" {
			b.Status = BookingStatusScheduled
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

// BookingServiceAssignment places one requested service of a booking with a
// staff member. Active mirrors whether the parent booking holds staff time and
// is what the storage-level exclusion constraint filters on.
type BookingServiceAssignment struct {
	bun.BaseModel `bun:"table:booking_service_assignments"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	BookingID uuid.UUID `bun:"booking_id,notnull,type:uuid"`
	Position  int       `bun:"position,notnull"`
	ServiceID uuid.UUID `bun:"service_id,notnull,type:uuid"`
	StaffID   uuid.UUID `bun:"staff_id,notnull,type:uuid"`
	StartAt   time.Time `bun:"start_at,notnull"`
	EndAt     time.Time `bun:"end_at,notnull"`
	Notes     string    `bun:"notes"`
	Active    bool      `bun:"active,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (a BookingServiceAssignment) Window() Interval {
	return Interval{Start: a.StartAt, End: a.EndAt}
}

func (a *BookingServiceAssignment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if a.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		a.ID = id
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}
