package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"appointly/backend/internal/domain"
	"appointly/backend/internal/service/availability"
	"appointly/backend/internal/service/bookings"
	"appointly/backend/internal/store"
)

type availabilityService interface {
	Resolve(ctx context.Context, in availability.ResolveInput) (domain.AvailabilityResult, error)
	ResolveCompany(ctx context.Context, in availability.CompanyInput) (domain.CompanyAvailability, error)
}

type bookingsService interface {
	Create(ctx context.Context, in bookings.CreateInput) (bookings.Details, error)
	Update(ctx context.Context, in bookings.UpdateInput) (bookings.Details, error)
	Get(ctx context.Context, bookingID uuid.UUID) (bookings.Details, error)
	Cancel(ctx context.Context, bookingID uuid.UUID) (bookings.Details, error)
	Confirm(ctx context.Context, bookingID uuid.UUID) (bookings.Details, error)
	Complete(ctx context.Context, bookingID uuid.UUID) (bookings.Details, error)
	MarkNoShow(ctx context.Context, bookingID uuid.UUID) (bookings.Details, error)
	HasConflict(ctx context.Context, q bookings.ConflictQuery) (bool, error)
	ExportCalendar(ctx context.Context, bookingID uuid.UUID) (string, error)
}

type BookingEngineServer struct {
	availability availabilityService
	bookings     bookingsService
	loc          *time.Location
	log          *slog.Logger
}

var _ BookingEngine = (*BookingEngineServer)(nil)

// NewBookingEngineServer builds the adapter. Anchor dates are read as calendar
// days in loc.
func NewBookingEngineServer(avail availabilityService, svc bookingsService, loc *time.Location, log *slog.Logger) *BookingEngineServer {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &BookingEngineServer{
		availability: avail,
		bookings:     svc,
		loc:          loc,
		log:          log.With(slog.String("component", "grpc.booking_engine")),
	}
}

func (s *BookingEngineServer) ResolveAvailability(ctx context.Context, req *ResolveAvailabilityRequest) (*ResolveAvailabilityResponse, error) {
	log := s.log.With(slog.String("rpc", "ResolveAvailability"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	staffID, err := parseID("staff_id", req.StaffID, true)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}
	anchor, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(req.AnchorDate), s.loc)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_anchor_date"), slog.String("staff_id", req.StaffID))
		return nil, status.Error(codes.InvalidArgument, "anchor_date must be a date (YYYY-MM-DD)")
	}

	res, err := s.availability.Resolve(ctx, availability.ResolveInput{
		StaffID:            staffID,
		Granularity:        domain.Granularity(strings.ToUpper(strings.TrimSpace(req.Granularity))),
		AnchorDate:         anchor,
		MinDurationMinutes: req.MinDurationMinutes,
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "availability resolve", err, slog.String("staff_id", req.StaffID))
	}

	log.Debug(
		"availability resolved",
		slog.String("staff_id", staffID.String()),
		slog.String("granularity", string(res.Granularity)),
		slog.Bool("no_schedule", res.NoSchedule),
	)
	return &ResolveAvailabilityResponse{Availability: res}, nil
}

func (s *BookingEngineServer) ResolveCompanyAvailability(ctx context.Context, req *ResolveCompanyAvailabilityRequest) (*ResolveCompanyAvailabilityResponse, error) {
	log := s.log.With(slog.String("rpc", "ResolveCompanyAvailability"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	companyID, err := parseID("company_id", req.CompanyID, true)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}
	anchor, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(req.AnchorDate), s.loc)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_anchor_date"), slog.String("company_id", req.CompanyID))
		return nil, status.Error(codes.InvalidArgument, "anchor_date must be a date (YYYY-MM-DD)")
	}

	res, err := s.availability.ResolveCompany(ctx, availability.CompanyInput{
		CompanyID:          companyID,
		Granularity:        domain.Granularity(strings.ToUpper(strings.TrimSpace(req.Granularity))),
		AnchorDate:         anchor,
		MinDurationMinutes: req.MinDurationMinutes,
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "company availability resolve", err, slog.String("company_id", req.CompanyID))
	}

	log.Debug(
		"company availability resolved",
		slog.String("company_id", companyID.String()),
		slog.String("granularity", string(res.Granularity)),
		slog.Int("staff_count", len(res.Staff)),
	)
	return &ResolveCompanyAvailabilityResponse{Availability: res}, nil
}

func (s *BookingEngineServer) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.StartTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_start_time"), slog.String("customer_id", req.CustomerID))
		return nil, status.Error(codes.InvalidArgument, "start_time is required")
	}
	customerID, err := parseID("customer_id", req.CustomerID, true)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}
	companyID, err := parseID("company_id", req.CompanyID, true)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}
	services, err := parseServices(req.Services)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_services"), slog.String("customer_id", req.CustomerID))
		return nil, err
	}

	d, err := s.bookings.Create(ctx, bookings.CreateInput{
		CustomerID:     customerID,
		CompanyID:      companyID,
		Services:       services,
		StartTime:      *req.StartTime,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "booking create", err,
			slog.String("customer_id", req.CustomerID),
			slog.Time("start_time", *req.StartTime),
		)
	}

	log.Info(
		"booking created",
		slog.String("booking_id", d.Booking.ID.String()),
		slog.String("company_id", d.Booking.CompanyID.String()),
		slog.Time("start_time", d.Booking.StartAt),
		slog.Time("end_time", d.Booking.EndAt),
	)
	return &BookingResponse{Booking: toWireBooking(d)}, nil
}

func (s *BookingEngineServer) UpdateBooking(ctx context.Context, req *UpdateBookingRequest) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", "UpdateBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseID("booking_id", req.BookingID, true)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}
	var services []bookings.ServiceRequest
	if req.Services != nil {
		services, err = parseServices(req.Services)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "invalid_services"), slog.String("booking_id", req.BookingID))
			return nil, err
		}
	}

	d, err := s.bookings.Update(ctx, bookings.UpdateInput{
		BookingID: id,
		StartTime: req.StartTime,
		Services:  services,
		Notes:     req.Notes,
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "booking update", err, slog.String("booking_id", req.BookingID))
	}

	log.Info(
		"booking updated",
		slog.String("booking_id", d.Booking.ID.String()),
		slog.Time("start_time", d.Booking.StartAt),
		slog.Time("end_time", d.Booking.EndAt),
	)
	return &BookingResponse{Booking: toWireBooking(d)}, nil
}

func (s *BookingEngineServer) GetBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	return s.bookingCall(ctx, "GetBooking", req, s.bookings.Get)
}

func (s *BookingEngineServer) CancelBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	return s.bookingCall(ctx, "CancelBooking", req, s.bookings.Cancel)
}

func (s *BookingEngineServer) ConfirmBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	return s.bookingCall(ctx, "ConfirmBooking", req, s.bookings.Confirm)
}

func (s *BookingEngineServer) CompleteBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	return s.bookingCall(ctx, "CompleteBooking", req, s.bookings.Complete)
}

func (s *BookingEngineServer) MarkNoShow(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	return s.bookingCall(ctx, "MarkNoShow", req, s.bookings.MarkNoShow)
}

func (s *BookingEngineServer) bookingCall(ctx context.Context, rpc string, req *BookingRequest, call func(context.Context, uuid.UUID) (bookings.Details, error)) (*BookingResponse, error) {
	log := s.log.With(slog.String("rpc", rpc))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseID("booking_id", req.BookingID, true)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	d, err := call(ctx, id)
	if err != nil {
		return nil, s.statusError(ctx, log, rpc, err, slog.String("booking_id", req.BookingID))
	}

	log.Debug("booking returned", slog.String("booking_id", id.String()), slog.String("status", string(d.Booking.Status)))
	return &BookingResponse{Booking: toWireBooking(d)}, nil
}

func (s *BookingEngineServer) CheckConflict(ctx context.Context, req *CheckConflictRequest) (*CheckConflictResponse, error) {
	log := s.log.With(slog.String("rpc", "CheckConflict"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.Start == nil || req.End == nil {
		log.Warn("invalid request", slog.String("reason", "missing_window"), slog.String("staff_id", req.StaffID))
		return nil, status.Error(codes.InvalidArgument, "start and end are required")
	}
	staffID, err := parseID("staff_id", req.StaffID, true)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}
	exclude, err := parseID("exclude_booking_id", req.ExcludeBookingID, false)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	busy, err := s.bookings.HasConflict(ctx, bookings.ConflictQuery{
		StaffID:          staffID,
		Start:            *req.Start,
		End:              *req.End,
		ExcludeBookingID: exclude,
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "conflict check", err, slog.String("staff_id", req.StaffID))
	}
	return &CheckConflictResponse{Conflict: busy}, nil
}

func (s *BookingEngineServer) ExportBookingCalendar(ctx context.Context, req *BookingRequest) (*ExportCalendarResponse, error) {
	log := s.log.With(slog.String("rpc", "ExportBookingCalendar"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseID("booking_id", req.BookingID, true)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	doc, err := s.bookings.ExportCalendar(ctx, id)
	if err != nil {
		return nil, s.statusError(ctx, log, "calendar export", err, slog.String("booking_id", req.BookingID))
	}
	return &ExportCalendarResponse{ICS: doc}, nil
}

// statusError maps an engine error to a gRPC status and logs it at a level
// matching its cause.
func (s *BookingEngineServer) statusError(ctx context.Context, log *slog.Logger, op string, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	var (
		bookingErr  *bookings.ValidationError
		availErr    *availability.ValidationError
		conflictErr *bookings.ConflictError
		violation   *domain.InvariantViolation
	)
	switch {
	case errors.As(err, &bookingErr), errors.As(err, &availErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(op+" idempotency conflict", args...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different booking. Try again.")
	case errors.As(err, &conflictErr):
		log.Info(op+" conflict", append(args, slog.String("conflict_staff_id", conflictErr.StaffID.String()))...)
		return status.Error(codes.FailedPrecondition, conflictErr.Error())
	case errors.Is(err, store.ErrConflict):
		log.Info(op+" conflict", args...)
		return status.Error(codes.FailedPrecondition, "The requested time is no longer available. Pick a different slot.")
	case errors.Is(err, store.ErrInvalidTransition):
		log.Info(op+" rejected", args...)
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info(op+" not found", args...)
		return status.Error(codes.NotFound, "not found")
	case errors.As(err, &violation):
		log.Error(op+" broke a booking invariant", args...)
		return status.Error(codes.Internal, "internal error")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(op+" timed out", args...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		log.Info(op+" canceled", args...)
		return status.Error(codes.Canceled, "request canceled")
	default:
		log.Error(op+" failed", args...)
		return status.Error(codes.Internal, "internal error")
	}
}

func parseID(field, raw string, required bool) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return uuid.Nil, status.Error(codes.InvalidArgument, field+" is required")
		}
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, field+" must be a UUID")
	}
	return id, nil
}

func parseServices(in []ServiceRequest) ([]bookings.ServiceRequest, error) {
	out := make([]bookings.ServiceRequest, 0, len(in))
	for _, r := range in {
		serviceID, err := parseID("services.service_id", r.ServiceID, true)
		if err != nil {
			return nil, err
		}
		staffID, err := parseID("services.staff_id", r.StaffID, false)
		if err != nil {
			return nil, err
		}
		out = append(out, bookings.ServiceRequest{ServiceID: serviceID, StaffID: staffID, Notes: r.Notes})
	}
	return out, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
