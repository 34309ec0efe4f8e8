package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CatalogService is a bookable service offered by a company. Prices are in
// minor currency units.
type CatalogService struct {
	bun.BaseModel `bun:"table:company_services"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	CompanyID       uuid.UUID `bun:"company_id,notnull,type:uuid"`
	Name            string    `bun:"name,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	Price           int64     `bun:"price,notnull"`
	DiscountPrice   *int64    `bun:"discount_price"`
	IsActive        bool      `bun:"is_active,notnull"`
}

func (s CatalogService) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// EffectivePrice is the discount price when one is set, the list price otherwise.
func (s CatalogService) EffectivePrice() int64 {
	if s.DiscountPrice != nil {
		return *s.DiscountPrice
	}
	return s.Price
}

type CompanyStaff struct {
	bun.BaseModel `bun:"table:company_staff"`

	CompanyID uuid.UUID `bun:"company_id,pk,type:uuid"`
	StaffID   uuid.UUID `bun:"staff_id,pk,type:uuid"`
	IsActive  bool      `bun:"is_active,notnull"`
	JoinedAt  time.Time `bun:"joined_at,notnull"`
}
