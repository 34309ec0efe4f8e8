package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"appointly/backend/internal/domain"
)

type CatalogRepo struct {
	db bun.IDB
}

func NewCatalogRepo(db bun.IDB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) GetService(ctx context.Context, companyID, serviceID uuid.UUID) (domain.CatalogService, error) {
	var s domain.CatalogService
	err := r.db.NewSelect().
		Model(&s).
		Where("id = ?", serviceID).
		Where("company_id = ?", companyID).
		Where("is_active").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.CatalogService{}, mapError(err)
	}
	return s, nil
}

func (r *CatalogRepo) AnyActiveStaffOf(ctx context.Context, companyID uuid.UUID) (uuid.UUID, error) {
	var m domain.CompanyStaff
	err := r.db.NewSelect().
		Model(&m).
		Where("company_id = ?", companyID).
		Where("is_active").
		OrderExpr("staff_id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return uuid.Nil, mapError(err)
	}
	return m.StaffID, nil
}

func (r *CatalogRepo) IsActiveStaffOf(ctx context.Context, companyID, staffID uuid.UUID) (bool, error) {
	ok, err := r.db.NewSelect().
		Model((*domain.CompanyStaff)(nil)).
		Where("company_id = ?", companyID).
		Where("staff_id = ?", staffID).
		Where("is_active").
		Exists(ctx)
	if err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

func (r *CatalogRepo) ListActiveStaff(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.NewSelect().
		Model((*domain.CompanyStaff)(nil)).
		Column("staff_id").
		Where("company_id = ?", companyID).
		Where("is_active").
		OrderExpr("staff_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}

func (r *CatalogRepo) CreateService(ctx context.Context, s domain.CatalogService) (domain.CatalogService, error) {
	if s.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.CatalogService{}, err
		}
		s.ID = id
	}
	if _, err := r.db.NewInsert().Model(&s).Exec(ctx); err != nil {
		return domain.CatalogService{}, mapError(err)
	}
	return s, nil
}

func (r *CatalogRepo) AddStaff(ctx context.Context, m domain.CompanyStaff) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (company_id, staff_id) DO UPDATE").
		Set("is_active = EXCLUDED.is_active").
		Exec(ctx)
	return mapError(err)
}
