package grpc

import (
	"time"

	"appointly/backend/internal/domain"
	"appointly/backend/internal/service/bookings"
)

type ResolveAvailabilityRequest struct {
	StaffID     string `json:"staff_id"`
	Granularity string `json:"granularity"`
	// AnchorDate is a calendar date, YYYY-MM-DD.
	AnchorDate         string `json:"anchor_date"`
	MinDurationMinutes int    `json:"min_duration_minutes"`
}

type ResolveAvailabilityResponse struct {
	Availability domain.AvailabilityResult `json:"availability"`
}

type ResolveCompanyAvailabilityRequest struct {
	CompanyID   string `json:"company_id"`
	Granularity string `json:"granularity"`
	// AnchorDate is a calendar date, YYYY-MM-DD.
	AnchorDate         string `json:"anchor_date"`
	MinDurationMinutes int    `json:"min_duration_minutes"`
}

type ResolveCompanyAvailabilityResponse struct {
	Availability domain.CompanyAvailability `json:"availability"`
}

type ServiceRequest struct {
	ServiceID string `json:"service_id"`
	StaffID   string `json:"staff_id,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type CreateBookingRequest struct {
	CustomerID string           `json:"customer_id"`
	CompanyID  string           `json:"company_id"`
	StartTime  *time.Time       `json:"start_time"`
	Services   []ServiceRequest `json:"services"`
	Notes      string           `json:"notes,omitempty"`
}

type UpdateBookingRequest struct {
	BookingID string     `json:"booking_id"`
	StartTime *time.Time `json:"start_time,omitempty"`
	// Services replaces the service list when present.
	Services []ServiceRequest `json:"services,omitempty"`
	Notes    *string          `json:"notes,omitempty"`
}

type BookingRequest struct {
	BookingID string `json:"booking_id"`
}

type BookingResponse struct {
	Booking Booking `json:"booking"`
}

type Booking struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customer_id"`
	CompanyID  string       `json:"company_id"`
	Status     string       `json:"status"`
	StartTime  time.Time    `json:"start_time"`
	EndTime    time.Time    `json:"end_time"`
	TotalPrice int64        `json:"total_price"`
	Notes      string       `json:"notes,omitempty"`
	Services   []Assignment `json:"services"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type Assignment struct {
	ID        string    `json:"id"`
	Position  int       `json:"position"`
	ServiceID string    `json:"service_id"`
	StaffID   string    `json:"staff_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Notes     string    `json:"notes,omitempty"`
}

type CheckConflictRequest struct {
	StaffID          string     `json:"staff_id"`
	Start            *time.Time `json:"start"`
	End              *time.Time `json:"end"`
	ExcludeBookingID string     `json:"exclude_booking_id,omitempty"`
}

type CheckConflictResponse struct {
	Conflict bool `json:"conflict"`
}

type ExportCalendarResponse struct {
	ICS string `json:"ics"`
}

func toWireBooking(d bookings.Details) Booking {
	b := d.Booking
	services := make([]Assignment, 0, len(d.Assignments))
	for _, a := range d.Assignments {
		services = append(services, Assignment{
			ID:        a.ID.String(),
			Position:  a.Position,
			ServiceID: a.ServiceID.String(),
			StaffID:   a.StaffID.String(),
			StartTime: a.StartAt.UTC(),
			EndTime:   a.EndAt.UTC(),
			Notes:     a.Notes,
		})
	}
	return Booking{
		ID:         b.ID.String(),
		CustomerID: b.CustomerID.String(),
		CompanyID:  b.CompanyID.String(),
		Status:     string(b.Status),
		StartTime:  b.StartAt.UTC(),
		EndTime:    b.EndAt.UTC(),
		TotalPrice: b.TotalPrice,
		Notes:      b.Notes,
		Services:   services,
		CreatedAt:  b.CreatedAt.UTC(),
		UpdatedAt:  b.UpdatedAt.UTC(),
	}
}
