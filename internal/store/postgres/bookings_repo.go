package postgres

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"appointly/backend/internal/domain"
	"appointly/backend/internal/store"
)

type BookingRepo struct {
	db          *bun.DB
	lockTimeout time.Duration
}

// NewBookingRepo returns a repository whose staff transactions give up
// waiting for locks after lockTimeout. Zero waits forever.
func NewBookingRepo(db *bun.DB, lockTimeout time.Duration) *BookingRepo {
	return &BookingRepo{db: db, lockTimeout: lockTimeout}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *BookingRepo) InStaffTransaction(ctx context.Context, staffIDs []uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if r.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())
			if _, err := tx.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}
		btx := bookingTx{tx: tx}
		if err := btx.LockStaff(ctx, staffIDs); err != nil {
			return err
		}
		return fn(ctx, btx)
	})
	return mapError(err)
}

func (r *BookingRepo) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, []domain.BookingServiceAssignment, error) {
	var b domain.Booking
	err := r.db.NewSelect().
		Model(&b).
		Where("id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, nil, mapError(err)
	}

	as, err := listAssignments(ctx, r.db, bookingID)
	if err != nil {
		return domain.Booking{}, nil, err
	}
	return b, as, nil
}

func (r *BookingRepo) HasConflict(ctx context.Context, staffID uuid.UUID, window domain.Interval, excludeBookingID uuid.UUID) (bool, error) {
	return hasConflict(ctx, r.db, staffID, window, excludeBookingID)
}

// sortedStaff returns the distinct ids in ascending byte order, the order in
// which staff locks are always taken.
func sortedStaff(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func staffLockKey(id uuid.UUID) string {
	return "staff:" + id.String()
}

func (t bookingTx) LockStaff(ctx context.Context, staffIDs []uuid.UUID) error {
	for _, id := range sortedStaff(staffIDs) {
		if _, err := t.tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", staffLockKey(id)).Exec(ctx); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (t bookingTx) HasConflict(ctx context.Context, staffID uuid.UUID, window domain.Interval, excludeBookingID uuid.UUID) (bool, error) {
	return hasConflict(ctx, t.tx, staffID, window, excludeBookingID)
}

func hasConflict(ctx context.Context, db bun.IDB, staffID uuid.UUID, window domain.Interval, excludeBookingID uuid.UUID) (bool, error) {
	q := db.NewSelect().
		Model((*domain.BookingServiceAssignment)(nil)).
		Where("staff_id = ?", staffID).
		Where("active").
		Where("start_at < ?", window.End).
		Where("end_at > ?", window.Start)
	if excludeBookingID != uuid.Nil {
		q = q.Where("booking_id <> ?", excludeBookingID)
	}
	ok, err := q.Exists(ctx)
	if err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

func (t bookingTx) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if _, err := t.tx.NewInsert().Model(&b).Exec(ctx); err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func (t bookingTx) GetBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := t.tx.NewSelect().
		Model(&b).
		Where("id = ?", bookingID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func (t bookingTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	res, err := t.tx.NewUpdate().
		Model(&b).
		Column("start_at", "end_at", "total_price", "notes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (t bookingTx) SetStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) (domain.Booking, error) {
	res, err := t.tx.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", bookingID).
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return domain.Booking{}, err
	}

	_, err = t.tx.NewUpdate().
		Model((*domain.BookingServiceAssignment)(nil)).
		Set("active = ?", status.IsActive()).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}

	var b domain.Booking
	if err := t.tx.NewSelect().Model(&b).Where("id = ?", bookingID).Scan(ctx); err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func (t bookingTx) ListAssignments(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingServiceAssignment, error) {
	return listAssignments(ctx, t.tx, bookingID)
}

func listAssignments(ctx context.Context, db bun.IDB, bookingID uuid.UUID) ([]domain.BookingServiceAssignment, error) {
	var rows []domain.BookingServiceAssignment
	err := db.NewSelect().
		Model(&rows).
		Where("booking_id = ?", bookingID).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (t bookingTx) InsertAssignments(ctx context.Context, as []domain.BookingServiceAssignment) ([]domain.BookingServiceAssignment, error) {
	if len(as) == 0 {
		return nil, nil
	}
	rows := append([]domain.BookingServiceAssignment(nil), as...)
	if _, err := t.tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (t bookingTx) DeleteAssignments(ctx context.Context, bookingID uuid.UUID) error {
	_, err := t.tx.NewDelete().
		Model((*domain.BookingServiceAssignment)(nil)).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return mapError(err)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireAffected(res rowsAffecter) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
