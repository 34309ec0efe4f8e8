package store

import (
	"context"

	"github.com/google/uuid"

	"appointly/backend/internal/domain"
)

type BookingRepository interface {
	// InStaffTransaction runs fn in one transaction after taking the advisory
	// locks of the given staff members in ascending id order. Locks are
	// released when the transaction ends.
	InStaffTransaction(ctx context.Context, staffIDs []uuid.UUID, fn func(ctx context.Context, tx BookingTx) error) error

	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, []domain.BookingServiceAssignment, error)
	HasConflict(ctx context.Context, staffID uuid.UUID, window domain.Interval, excludeBookingID uuid.UUID) (bool, error)
}

type BookingTx interface {
	LockStaff(ctx context.Context, staffIDs []uuid.UUID) error
	// HasConflict reports whether an active assignment of the staff member
	// overlaps window. uuid.Nil excludes nothing.
	HasConflict(ctx context.Context, staffID uuid.UUID, window domain.Interval, excludeBookingID uuid.UUID) (bool, error)

	CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	GetBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	// SetStatus changes the status and flips the active flag of every
	// assignment of the booking to match it.
	SetStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) (domain.Booking, error)

	ListAssignments(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingServiceAssignment, error)
	InsertAssignments(ctx context.Context, as []domain.BookingServiceAssignment) ([]domain.BookingServiceAssignment, error)
	DeleteAssignments(ctx context.Context, bookingID uuid.UUID) error
}
