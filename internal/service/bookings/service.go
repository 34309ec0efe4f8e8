package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"appointly/backend/internal/calendar"
	"appointly/backend/internal/domain"
	"appointly/backend/internal/events"
	"appointly/backend/internal/store"
	"appointly/backend/internal/telemetry"
	"appointly/backend/internal/validation"
)

const DefaultMaxAttempts = 3

// AvailabilityInvalidator drops cached availability of staff members whose
// commitments changed.
type AvailabilityInvalidator interface {
	InvalidateStaff(ctx context.Context, staffIDs ...uuid.UUID) error
}

type Options struct {
	Events      events.Publisher
	Invalidator AvailabilityInvalidator
	Tracer      trace.Tracer
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
	// MaxAttempts bounds how often an allocation is run when storage reports
	// a retryable failure.
	MaxAttempts int
	AllowPast   bool
	Now         func() time.Time
}

type Service struct {
	repo        store.BookingRepository
	catalog     store.ServiceCatalog
	staff       store.StaffDirectory
	events      events.Publisher
	invalidator AvailabilityInvalidator
	tracer      trace.Tracer
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	maxAttempts int
	allowPast   bool
	now         func() time.Time
}

func NewService(repo store.BookingRepository, catalog store.ServiceCatalog, staff store.StaffDirectory, opts Options) *Service {
	s := &Service{
		repo:        repo,
		catalog:     catalog,
		staff:       staff,
		events:      opts.Events,
		invalidator: opts.Invalidator,
		tracer:      opts.Tracer,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		allowPast:   opts.AllowPast,
		now:         opts.Now,
	}
	if s.events == nil {
		s.events = events.Discard{}
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "bookings")
	if s.maxAttempts < 1 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Details is a booking together with its assignments in position order.
type Details struct {
	Booking     domain.Booking
	Assignments []domain.BookingServiceAssignment
}

type ServiceRequest struct {
	ServiceID uuid.UUID `json:"service_id" validate:"required"`
	// StaffID is optional; uuid.Nil lets the engine pick a staff member.
	StaffID uuid.UUID `json:"staff_id"`
	Notes   string    `json:"notes"`
}

type CreateInput struct {
	CustomerID     uuid.UUID        `json:"customer_id" validate:"required"`
	CompanyID      uuid.UUID        `json:"company_id" validate:"required"`
	Services       []ServiceRequest `json:"services" validate:"min=1,max=20,dive"`
	StartTime      time.Time        `json:"start_time" validate:"required"`
	Notes          string           `json:"notes"`
	IdempotencyKey string           `json:"idempotency_key"`
}

// Create places the requested services back to back from StartTime and
// commits the booking with all its assignments, or nothing at all.
func (s *Service) Create(ctx context.Context, in CreateInput) (out Details, err error) {
	ctx, span := telemetry.Start(ctx, s.tracer, "bookings.Create",
		attribute.String("company.id", in.CompanyID.String()),
		attribute.Int("booking.services", len(in.Services)),
	)
	defer span.End(&err)
	defer s.observe("create", &err)

	if msg := validation.Struct(in); msg != "" {
		return Details{}, validationError(msg)
	}
	start := in.StartTime.UTC()
	if err := s.checkStart(start); err != nil {
		return Details{}, err
	}

	var id uuid.UUID
	if key := in.IdempotencyKey; key != "" {
		if len(key) > 256 {
			return Details{}, validationError("idempotency_key too long")
		}
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("appointly:create_booking:"+in.CustomerID.String()+":"+key))
	}

	legs, err := s.resolveLegs(ctx, in.CompanyID, in.Services)
	if err != nil {
		return Details{}, err
	}
	plan := domain.PlanLegs(start, legs)

	replayed := false
	err = s.allocate(ctx, plan.StaffIDs(), func(ctx context.Context, tx store.BookingTx) error {
		replayed = false
		if id != uuid.Nil {
			existing, err := tx.GetBookingForUpdate(ctx, id)
			switch {
			case err == nil:
				if existing.CustomerID != in.CustomerID || existing.CompanyID != in.CompanyID || !existing.StartAt.Equal(start) {
					return store.ErrIdempotencyConflict
				}
				replayed = true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		if err := checkPlan(ctx, tx, plan, uuid.Nil); err != nil {
			return err
		}

		b, err := tx.CreateBooking(ctx, domain.Booking{
			ID:         id,
			CustomerID: in.CustomerID,
			CompanyID:  in.CompanyID,
			Status:     domain.BookingStatusScheduled,
			StartAt:    plan.Start,
			EndAt:      plan.End,
			TotalPrice: plan.TotalPrice,
			Notes:      in.Notes,
		})
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		as, err := writeAssignments(ctx, tx, b, plan)
		if err != nil {
			return err
		}
		out = Details{Booking: b, Assignments: as}
		return nil
	}, func() error { return s.findConflict(ctx, plan, uuid.Nil) })
	if err != nil {
		return Details{}, err
	}

	if replayed {
		span.AddEvent("idempotent replay")
		return s.Get(ctx, id)
	}

	s.logger.InfoContext(ctx, "booking created",
		"booking_id", out.Booking.ID,
		"company_id", out.Booking.CompanyID,
		"start_at", out.Booking.StartAt,
		"end_at", out.Booking.EndAt,
		"services", len(out.Assignments),
	)
	s.afterWrite(ctx, events.BookingCreated, out, nil)
	return out, nil
}

type UpdateInput struct {
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
	// StartTime shifts the whole booking when set.
	StartTime *time.Time `json:"start_time"`
	// Services replaces the service list when non-nil.
	Services []ServiceRequest `json:"services" validate:"omitnil,min=1,max=20,dive"`
	Notes    *string          `json:"notes"`
}

// Update shifts a booking, replaces its services, or both. The new layout is
// checked against every other active booking exactly as on creation and the
// assignments are replaced as one batch.
func (s *Service) Update(ctx context.Context, in UpdateInput) (out Details, err error) {
	ctx, span := telemetry.Start(ctx, s.tracer, "bookings.Update",
		attribute.String("booking.id", in.BookingID.String()),
	)
	defer span.End(&err)
	defer s.observe("update", &err)

	if msg := validation.Struct(in); msg != "" {
		return Details{}, validationError(msg)
	}
	if in.StartTime == nil && in.Services == nil && in.Notes == nil {
		return Details{}, validationError("nothing to update")
	}
	if in.StartTime != nil {
		if err := s.checkStart(in.StartTime.UTC()); err != nil {
			return Details{}, err
		}
	}

	current, err := s.Get(ctx, in.BookingID)
	if err != nil {
		return Details{}, err
	}

	var replacement []domain.Leg
	if in.Services != nil {
		replacement, err = s.resolveLegs(ctx, current.Booking.CompanyID, in.Services)
		if err != nil {
			return Details{}, err
		}
	}

	var (
		plan     domain.Plan
		previous []domain.BookingServiceAssignment
	)
	err = s.allocate(ctx, nil, func(ctx context.Context, tx store.BookingTx) error {
		b, err := tx.GetBookingForUpdate(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if !b.Status.IsActive() {
			return fmt.Errorf("%w: cannot update a %s booking", store.ErrInvalidTransition, b.Status)
		}
		previous, err = tx.ListAssignments(ctx, b.ID)
		if err != nil {
			return err
		}

		start := b.StartAt
		if in.StartTime != nil {
			start = in.StartTime.UTC()
		}
		legs := replacement
		if legs == nil {
			legs = legsOf(previous)
		}
		plan = domain.PlanLegs(start, legs)

		if err := tx.LockStaff(ctx, plan.StaffIDs()); err != nil {
			return err
		}
		if err := checkPlan(ctx, tx, plan, b.ID); err != nil {
			return err
		}

		if err := tx.DeleteAssignments(ctx, b.ID); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		b.StartAt, b.EndAt = plan.Start, plan.End
		if replacement != nil {
			b.TotalPrice = plan.TotalPrice
		}
		if in.Notes != nil {
			b.Notes = *in.Notes
		}
		as, err := writeAssignments(ctx, tx, b, plan)
		if err != nil {
			return err
		}
		b, err = tx.UpdateBooking(ctx, b)
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		out = Details{Booking: b, Assignments: as}
		return nil
	}, func() error { return s.findConflict(ctx, plan, in.BookingID) })
	if err != nil {
		return Details{}, err
	}

	s.logger.InfoContext(ctx, "booking updated",
		"booking_id", out.Booking.ID,
		"start_at", out.Booking.StartAt,
		"end_at", out.Booking.EndAt,
	)
	s.afterWrite(ctx, events.BookingUpdated, out, previous)
	return out, nil
}

func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (Details, error) {
	if bookingID == uuid.Nil {
		return Details{}, validationError("booking_id is required")
	}
	b, as, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return Details{}, fmt.Errorf("booking %s: %w", bookingID, err)
	}
	return Details{Booking: b, Assignments: as}, nil
}

func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID) (Details, error) {
	return s.transition(ctx, "cancel", bookingID, domain.BookingStatusCancelled)
}

func (s *Service) Confirm(ctx context.Context, bookingID uuid.UUID) (Details, error) {
	return s.transition(ctx, "confirm", bookingID, domain.BookingStatusConfirmed)
}

func (s *Service) Complete(ctx context.Context, bookingID uuid.UUID) (Details, error) {
	return s.transition(ctx, "complete", bookingID, domain.BookingStatusCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, bookingID uuid.UUID) (Details, error) {
	return s.transition(ctx, "no_show", bookingID, domain.BookingStatusNoShow)
}

func (s *Service) transition(ctx context.Context, op string, bookingID uuid.UUID, to domain.BookingStatus) (out Details, err error) {
	ctx, span := telemetry.Start(ctx, s.tracer, "bookings.Transition",
		attribute.String("booking.id", bookingID.String()),
		attribute.String("booking.status", string(to)),
	)
	defer span.End(&err)
	defer s.observe(op, &err)

	if bookingID == uuid.Nil {
		return Details{}, validationError("booking_id is required")
	}

	var from domain.BookingStatus
	err = s.allocate(ctx, nil, func(ctx context.Context, tx store.BookingTx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("booking %s: %w", bookingID, err)
		}
		from = b.Status
		if !from.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, from, to)
		}
		b, err = tx.SetStatus(ctx, bookingID, to)
		if err != nil {
			return err
		}
		as, err := tx.ListAssignments(ctx, bookingID)
		if err != nil {
			return err
		}
		out = Details{Booking: b, Assignments: as}
		return nil
	}, nil)
	if err != nil {
		return Details{}, err
	}

	s.logger.InfoContext(ctx, "booking status changed", "booking_id", bookingID, "from", from, "to", to)
	s.afterWrite(ctx, events.BookingStatusChanged, out, nil)
	return out, nil
}

type ConflictQuery struct {
	StaffID          uuid.UUID `json:"staff_id" validate:"required"`
	Start            time.Time `json:"start" validate:"required"`
	End              time.Time `json:"end" validate:"required"`
	ExcludeBookingID uuid.UUID `json:"exclude_booking_id"`
}

// HasConflict is a read-only check. Allocation repeats the check under the
// staff locks, so a false result here guarantees nothing.
func (s *Service) HasConflict(ctx context.Context, q ConflictQuery) (bool, error) {
	if msg := validation.Struct(q); msg != "" {
		return false, validationError(msg)
	}
	if !q.End.After(q.Start) {
		return false, validationError("end must be after start")
	}
	return s.repo.HasConflict(ctx, q.StaffID, domain.Interval{Start: q.Start.UTC(), End: q.End.UTC()}, q.ExcludeBookingID)
}

// ExportCalendar renders the booking as an iCalendar document.
func (s *Service) ExportCalendar(ctx context.Context, bookingID uuid.UUID) (string, error) {
	d, err := s.Get(ctx, bookingID)
	if err != nil {
		return "", err
	}
	names := make(map[uuid.UUID]string, len(d.Assignments))
	for _, a := range d.Assignments {
		if _, ok := names[a.ServiceID]; ok {
			continue
		}
		svc, err := s.catalog.GetService(ctx, d.Booking.CompanyID, a.ServiceID)
		switch {
		case err == nil:
			names[a.ServiceID] = svc.Name
		case errors.Is(err, store.ErrNotFound):
		default:
			return "", fmt.Errorf("service %s: %w", a.ServiceID, err)
		}
	}
	return calendar.Export(d.Booking, d.Assignments, names), nil
}

func (s *Service) checkStart(start time.Time) error {
	if !s.allowPast && start.Before(s.now()) {
		return validationError("start_time must not be in the past")
	}
	return nil
}

// resolveLegs looks up duration and price of every requested service and
// picks a staff member where none was requested.
func (s *Service) resolveLegs(ctx context.Context, companyID uuid.UUID, reqs []ServiceRequest) ([]domain.Leg, error) {
	legs := make([]domain.Leg, 0, len(reqs))
	var fallback uuid.UUID
	for _, r := range reqs {
		svc, err := s.catalog.GetService(ctx, companyID, r.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", r.ServiceID, err)
		}
		if svc.DurationMinutes <= 0 {
			return nil, validationError(fmt.Sprintf("service %s has no duration", r.ServiceID))
		}

		staffID := r.StaffID
		if staffID == uuid.Nil {
			if fallback == uuid.Nil {
				fallback, err = s.staff.AnyActiveStaffOf(ctx, companyID)
				if err != nil {
					return nil, fmt.Errorf("company %s has no active staff: %w", companyID, err)
				}
			}
			staffID = fallback
		} else {
			ok, err := s.staff.IsActiveStaffOf(ctx, companyID, staffID)
			if err != nil {
				return nil, fmt.Errorf("staff %s: %w", staffID, err)
			}
			if !ok {
				return nil, fmt.Errorf("staff %s: %w", staffID, store.ErrNotFound)
			}
		}

		legs = append(legs, domain.Leg{
			ServiceID: svc.ID,
			StaffID:   staffID,
			Duration:  svc.Duration(),
			Price:     svc.EffectivePrice(),
			Notes:     r.Notes,
		})
	}
	return legs, nil
}

func legsOf(as []domain.BookingServiceAssignment) []domain.Leg {
	legs := make([]domain.Leg, 0, len(as))
	for _, a := range as {
		legs = append(legs, domain.Leg{
			ServiceID: a.ServiceID,
			StaffID:   a.StaffID,
			Duration:  a.EndAt.Sub(a.StartAt),
			Notes:     a.Notes,
		})
	}
	return legs
}

// checkPlan runs the conflict check for every leg in order and reports the
// first one that overlaps committed time.
func checkPlan(ctx context.Context, tx store.BookingTx, plan domain.Plan, exclude uuid.UUID) error {
	for _, a := range plan.Assignments {
		busy, err := tx.HasConflict(ctx, a.StaffID, a.Window(), exclude)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if busy {
			return &ConflictError{ServiceID: a.ServiceID, StaffID: a.StaffID, Start: a.StartAt, End: a.EndAt}
		}
	}
	return nil
}

func writeAssignments(ctx context.Context, tx store.BookingTx, b domain.Booking, plan domain.Plan) ([]domain.BookingServiceAssignment, error) {
	as := make([]domain.BookingServiceAssignment, len(plan.Assignments))
	copy(as, plan.Assignments)
	for i := range as {
		as[i].BookingID = b.ID
	}
	if err := domain.CheckLayout(b, as); err != nil {
		return nil, err
	}
	as, err := tx.InsertAssignments(ctx, as)
	if err != nil {
		return nil, fmt.Errorf("insert assignments: %w", err)
	}
	return as, nil
}

// allocate runs fn in a staff transaction and repeats it while storage reports
// a retryable failure. Once attempts run out, onExhausted explains the failure
// as a conflict when it can.
func (s *Service) allocate(ctx context.Context, staffIDs []uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error, onExhausted func() error) error {
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.AllocationDuration.Observe(time.Since(started).Seconds())
		}
	}()

	for attempt := 1; ; attempt++ {
		err := s.repo.InStaffTransaction(ctx, staffIDs, fn)
		if err == nil || !errors.Is(err, store.ErrRetryable) {
			return err
		}
		if attempt >= s.maxAttempts {
			s.logger.WarnContext(ctx, "allocation attempts exhausted", "attempts", attempt, "err", err)
			if onExhausted != nil {
				if cErr := onExhausted(); cErr != nil {
					return cErr
				}
			}
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		}
		if s.metrics != nil {
			s.metrics.AllocationRetries.Inc()
		}
		s.logger.InfoContext(ctx, "retrying allocation", "attempt", attempt, "err", err)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// findConflict checks each leg outside of any transaction. It returns a
// *ConflictError for the first busy leg, or a conflict covering the whole
// booking when none can be singled out. A failed lookup is logged and leaves
// the caller's generic conflict in place.
func (s *Service) findConflict(ctx context.Context, plan domain.Plan, exclude uuid.UUID) error {
	for _, a := range plan.Assignments {
		busy, err := s.repo.HasConflict(ctx, a.StaffID, a.Window(), exclude)
		if err != nil {
			s.logger.WarnContext(ctx, "conflict lookup failed",
				"staff_id", a.StaffID,
				"service_id", a.ServiceID,
				"err", err,
			)
			return nil
		}
		if busy {
			return &ConflictError{ServiceID: a.ServiceID, StaffID: a.StaffID, Start: a.StartAt, End: a.EndAt}
		}
	}
	if len(plan.Assignments) == 0 {
		return nil
	}
	return &ConflictError{StaffID: plan.Assignments[0].StaffID, Start: plan.Start, End: plan.End}
}

func (s *Service) afterWrite(ctx context.Context, t events.Type, d Details, previous []domain.BookingServiceAssignment) {
	if s.invalidator != nil {
		staff := domain.DistinctStaff(append(append([]domain.BookingServiceAssignment(nil), d.Assignments...), previous...))
		if err := s.invalidator.InvalidateStaff(ctx, staff...); err != nil {
			s.logger.WarnContext(ctx, "availability invalidation failed", "booking_id", d.Booking.ID, "err", err)
		}
	}
	if err := s.events.Publish(ctx, events.NewEvent(t, d.Booking, d.Assignments)); err != nil {
		s.logger.WarnContext(ctx, "booking event not published", "type", t, "booking_id", d.Booking.ID, "err", err)
	}
}

func (s *Service) observe(op string, errp *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.BookingOps.WithLabelValues(op, outcome(*errp)).Inc()
}

func outcome(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case errors.As(err, &vErr):
		return telemetry.OutcomeInvalid
	case errors.Is(err, store.ErrConflict):
		return telemetry.OutcomeConflict
	case errors.Is(err, store.ErrNotFound):
		return telemetry.OutcomeNotFound
	default:
		return telemetry.OutcomeError
	}
}
