package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"appointly/backend/internal/domain"
)

type ScheduleRepo struct {
	db bun.IDB
}

func NewScheduleRepo(db bun.IDB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

func (r *ScheduleRepo) GetRules(ctx context.Context, staffID uuid.UUID) ([]domain.AvailabilityRule, error) {
	return r.ListRules(ctx, []uuid.UUID{staffID})
}

func (r *ScheduleRepo) ListRules(ctx context.Context, staffIDs []uuid.UUID) ([]domain.AvailabilityRule, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	var rows []domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("staff_id IN (?)", bun.In(staffIDs)).
		OrderExpr("staff_id ASC, weekday ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

// GetTimeOffs returns the periods sharing at least one calendar day with
// window. window.End is exclusive.
func (r *ScheduleRepo) GetTimeOffs(ctx context.Context, staffID uuid.UUID, window domain.Interval) ([]domain.TimeOffPeriod, error) {
	return r.ListTimeOffs(ctx, []uuid.UUID{staffID}, window)
}

func (r *ScheduleRepo) ListTimeOffs(ctx context.Context, staffIDs []uuid.UUID, window domain.Interval) ([]domain.TimeOffPeriod, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	first := window.Start.Format(time.DateOnly)
	last := window.End.Add(-time.Nanosecond).Format(time.DateOnly)

	var rows []domain.TimeOffPeriod
	err := r.db.NewSelect().
		Model(&rows).
		Where("staff_id IN (?)", bun.In(staffIDs)).
		Where("start_date <= ?::date", last).
		Where("end_date >= ?::date", first).
		OrderExpr("staff_id ASC, start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *ScheduleRepo) GetActiveAssignments(ctx context.Context, staffID uuid.UUID, window domain.Interval) ([]domain.BookingServiceAssignment, error) {
	return r.ListActiveAssignments(ctx, []uuid.UUID{staffID}, window)
}

func (r *ScheduleRepo) ListActiveAssignments(ctx context.Context, staffIDs []uuid.UUID, window domain.Interval) ([]domain.BookingServiceAssignment, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	var rows []domain.BookingServiceAssignment
	err := r.db.NewSelect().
		Model(&rows).
		Where("staff_id IN (?)", bun.In(staffIDs)).
		Where("active").
		Where("start_at < ?", window.End).
		Where("end_at > ?", window.Start).
		OrderExpr("staff_id ASC, start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *ScheduleRepo) CreateRule(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error) {
	if err := rule.Validate(); err != nil {
		return domain.AvailabilityRule{}, err
	}
	if _, err := r.db.NewInsert().Model(&rule).Exec(ctx); err != nil {
		return domain.AvailabilityRule{}, mapError(err)
	}
	return rule, nil
}

func (r *ScheduleRepo) CreateTimeOff(ctx context.Context, p domain.TimeOffPeriod) (domain.TimeOffPeriod, error) {
	if err := p.Validate(); err != nil {
		return domain.TimeOffPeriod{}, err
	}
	if _, err := r.db.NewInsert().Model(&p).Exec(ctx); err != nil {
		return domain.TimeOffPeriod{}, mapError(err)
	}
	return p, nil
}
