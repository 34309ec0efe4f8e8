package availability

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

	"appointly/backend/internal/cache"
	"appointly/backend/internal/domain"
	"appointly/backend/internal/store"
	"appointly/backend/internal/telemetry"
	"appointly/backend/internal/validation"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Cache is the subset of the availability cache the resolver uses.
type Cache interface {
	Generation(ctx context.Context, staffID uuid.UUID) (int64, error)
	Get(ctx context.Context, key cache.Key) (domain.AvailabilityResult, bool, error)
	Set(ctx context.Context, key cache.Key, res domain.AvailabilityResult) error
}

type Options struct {
	Cache    Cache
	Location *time.Location
	Tracer   trace.Tracer
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

type Service struct {
	schedule store.ScheduleStore
	staff    store.StaffDirectory
	cache    Cache
	loc      *time.Location
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func NewService(schedule store.ScheduleStore, staff store.StaffDirectory, opts Options) *Service {
	s := &Service{
		schedule: schedule,
		staff:    staff,
		cache:    opts.Cache,
		loc:      opts.Location,
		tracer:   opts.Tracer,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "availability")
	return s
}

type ResolveInput struct {
	StaffID            uuid.UUID          `json:"staff_id" validate:"required"`
	Granularity        domain.Granularity `json:"granularity" validate:"required,oneof=DAILY WEEKLY MONTHLY"`
	AnchorDate         time.Time          `json:"anchor_date" validate:"required"`
	MinDurationMinutes int                `json:"min_duration_minutes" validate:"gte=0,lte=1440"`
}

// Resolve computes the free slots of one staff member over the window the
// granularity selects around AnchorDate. Slots shorter than a positive
// MinDurationMinutes are never returned.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (res domain.AvailabilityResult, err error) {
	ctx, span := telemetry.Start(ctx, s.tracer, "availability.Resolve",
		attribute.String("staff.id", in.StaffID.String()),
		attribute.String("availability.granularity", string(in.Granularity)),
	)
	defer span.End(&err)
	defer func() { s.observe(in.Granularity, err) }()

	if msg := validation.Struct(in); msg != "" {
		return domain.AvailabilityResult{}, validationError(msg)
	}

	window, err := domain.WindowFor(in.Granularity, in.AnchorDate, s.loc)
	if err != nil {
		return domain.AvailabilityResult{}, validationError(err.Error())
	}
	minDuration := time.Duration(in.MinDurationMinutes) * time.Minute
	key := cache.Key{
		StaffID:     in.StaffID,
		Granularity: in.Granularity,
		Day:         window.Start.Format(time.DateOnly),
		MinDuration: minDuration,
	}

	cacheable := s.generation(ctx, &key)
	if cacheable {
		if cached, ok := s.lookup(ctx, key); ok {
			span.AddEvent("cache hit")
			return cached, nil
		}
	}

	rules, err := s.schedule.GetRules(ctx, in.StaffID)
	if err != nil {
		return domain.AvailabilityResult{}, fmt.Errorf("load rules: %w", err)
	}

	var (
		offs []domain.TimeOffPeriod
		as   []domain.BookingServiceAssignment
	)
	if len(rules) > 0 {
		offs, err = s.schedule.GetTimeOffs(ctx, in.StaffID, window)
		if err != nil {
			return domain.AvailabilityResult{}, fmt.Errorf("load time off: %w", err)
		}
		as, err = s.schedule.GetActiveAssignments(ctx, in.StaffID, window)
		if err != nil {
			return domain.AvailabilityResult{}, fmt.Errorf("load assignments: %w", err)
		}
	}

	res, err = domain.Resolve(domain.ResolveInput{
		StaffID:     in.StaffID,
		Rules:       rules,
		TimeOffs:    offs,
		Assignments: as,
		Granularity: in.Granularity,
		Anchor:      in.AnchorDate,
		MinDuration: minDuration,
		Location:    s.loc,
	})
	if err != nil {
		return domain.AvailabilityResult{}, err
	}

	if cacheable {
		s.store(ctx, key, res)
	}
	return res, nil
}

type CompanyInput struct {
	CompanyID          uuid.UUID          `json:"company_id" validate:"required"`
	Granularity        domain.Granularity `json:"granularity" validate:"required,oneof=DAILY WEEKLY MONTHLY"`
	AnchorDate         time.Time          `json:"anchor_date" validate:"required"`
	MinDurationMinutes int                `json:"min_duration_minutes" validate:"gte=0,lte=1440"`
}

// ResolveCompany computes the availability of every active staff member of a
// company over one window. Staff members without any rule are left out. It
// returns store.ErrNotFound when the company has no active staff or none of
// them has a schedule. Results are not cached.
func (s *Service) ResolveCompany(ctx context.Context, in CompanyInput) (res domain.CompanyAvailability, err error) {
	ctx, span := telemetry.Start(ctx, s.tracer, "availability.ResolveCompany",
		attribute.String("company.id", in.CompanyID.String()),
		attribute.String("availability.granularity", string(in.Granularity)),
	)
	defer span.End(&err)
	defer func() { s.observe(in.Granularity, err) }()

	if msg := validation.Struct(in); msg != "" {
		return domain.CompanyAvailability{}, validationError(msg)
	}
	window, err := domain.WindowFor(in.Granularity, in.AnchorDate, s.loc)
	if err != nil {
		return domain.CompanyAvailability{}, validationError(err.Error())
	}

	staffIDs, err := s.staff.ListActiveStaff(ctx, in.CompanyID)
	if err != nil {
		return domain.CompanyAvailability{}, fmt.Errorf("list staff: %w", err)
	}
	if len(staffIDs) == 0 {
		return domain.CompanyAvailability{}, fmt.Errorf("company %s has no active staff: %w", in.CompanyID, store.ErrNotFound)
	}

	rules, err := s.schedule.ListRules(ctx, staffIDs)
	if err != nil {
		return domain.CompanyAvailability{}, fmt.Errorf("load rules: %w", err)
	}
	rulesOf := groupByStaff(rules, func(r domain.AvailabilityRule) uuid.UUID { return r.StaffID })

	scheduled := make([]uuid.UUID, 0, len(staffIDs))
	for _, id := range staffIDs {
		if len(rulesOf[id]) > 0 {
			scheduled = append(scheduled, id)
		}
	}
	if len(scheduled) == 0 {
		return domain.CompanyAvailability{}, fmt.Errorf("no staff of company %s has a schedule: %w", in.CompanyID, store.ErrNotFound)
	}
	span.SetAttributes(attribute.Int("availability.staff_count", len(scheduled)))

	offs, err := s.schedule.ListTimeOffs(ctx, scheduled, window)
	if err != nil {
		return domain.CompanyAvailability{}, fmt.Errorf("load time off: %w", err)
	}
	as, err := s.schedule.ListActiveAssignments(ctx, scheduled, window)
	if err != nil {
		return domain.CompanyAvailability{}, fmt.Errorf("load assignments: %w", err)
	}
	offsOf := groupByStaff(offs, func(p domain.TimeOffPeriod) uuid.UUID { return p.StaffID })
	asOf := groupByStaff(as, func(a domain.BookingServiceAssignment) uuid.UUID { return a.StaffID })

	res = domain.CompanyAvailability{
		CompanyID:   in.CompanyID,
		Granularity: in.Granularity,
		Staff:       make([]domain.AvailabilityResult, 0, len(scheduled)),
	}
	minDuration := time.Duration(in.MinDurationMinutes) * time.Minute
	for _, id := range scheduled {
		one, err := domain.Resolve(domain.ResolveInput{
			StaffID:     id,
			Rules:       rulesOf[id],
			TimeOffs:    offsOf[id],
			Assignments: asOf[id],
			Granularity: in.Granularity,
			Anchor:      in.AnchorDate,
			MinDuration: minDuration,
			Location:    s.loc,
		})
		if err != nil {
			return domain.CompanyAvailability{}, err
		}
		res.Staff = append(res.Staff, one)
	}
	return res, nil
}

func groupByStaff[T any](rows []T, staffOf func(T) uuid.UUID) map[uuid.UUID][]T {
	out := make(map[uuid.UUID][]T)
	for _, row := range rows {
		id := staffOf(row)
		out[id] = append(out[id], row)
	}
	return out
}

// generation stamps key with the staff generation. It reports false when the
// cache must be bypassed for this request.
func (s *Service) generation(ctx context.Context, key *cache.Key) bool {
	if s.cache == nil {
		return false
	}
	gen, err := s.cache.Generation(ctx, key.StaffID)
	if err != nil {
		s.logger.WarnContext(ctx, "availability cache generation read failed", "staff_id", key.StaffID.String(), "err", err)
		return false
	}
	key.Generation = gen
	return true
}

func (s *Service) lookup(ctx context.Context, key cache.Key) (domain.AvailabilityResult, bool) {
	res, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "availability cache read failed", "key", key.String(), "err", err)
		ok = false
	}
	if s.metrics != nil {
		result := "miss"
		if ok {
			result = "hit"
		}
		s.metrics.AvailabilityCache.WithLabelValues(result).Inc()
	}
	return res, ok
}

func (s *Service) store(ctx context.Context, key cache.Key, res domain.AvailabilityResult) {
	if err := s.cache.Set(ctx, key, res); err != nil {
		s.logger.WarnContext(ctx, "availability cache write failed", "key", key.String(), "err", err)
	}
}

func (s *Service) observe(g domain.Granularity, err error) {
	if s.metrics == nil {
		return
	}
	outcome := telemetry.OutcomeOK
	var vErr *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &vErr):
		outcome = telemetry.OutcomeInvalid
	default:
		outcome = telemetry.OutcomeError
	}
	if !g.Valid() {
		g = "unknown"
	}
	s.metrics.AvailabilityRequests.WithLabelValues(string(g), outcome).Inc()
}
