package store

import (
	"context"

	"github.com/google/uuid"

	"appointly/backend/internal/domain"
)

type ScheduleStore interface {
	GetRules(ctx context.Context, staffID uuid.UUID) ([]domain.AvailabilityRule, error)
	GetTimeOffs(ctx context.Context, staffID uuid.UUID, window domain.Interval) ([]domain.TimeOffPeriod, error)
	GetActiveAssignments(ctx context.Context, staffID uuid.UUID, window domain.Interval) ([]domain.BookingServiceAssignment, error)

	// The List variants load the same rows for several staff members in one
	// query each. Callers group the rows by StaffID.
	ListRules(ctx context.Context, staffIDs []uuid.UUID) ([]domain.AvailabilityRule, error)
	ListTimeOffs(ctx context.Context, staffIDs []uuid.UUID, window domain.Interval) ([]domain.TimeOffPeriod, error)
	ListActiveAssignments(ctx context.Context, staffIDs []uuid.UUID, window domain.Interval) ([]domain.BookingServiceAssignment, error)
}

type ServiceCatalog interface {
	// GetService returns ErrNotFound for unknown or inactive services and for
	// services of another company.
	GetService(ctx context.Context, companyID, serviceID uuid.UUID) (domain.CatalogService, error)
}

type StaffDirectory interface {
	// AnyActiveStaffOf returns the active staff member with the lowest id.
	AnyActiveStaffOf(ctx context.Context, companyID uuid.UUID) (uuid.UUID, error)
	IsActiveStaffOf(ctx context.Context, companyID, staffID uuid.UUID) (bool, error)
	// ListActiveStaff returns the active staff of a company ordered by id.
	ListActiveStaff(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error)
}
