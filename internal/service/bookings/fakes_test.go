package bookings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"appointly/backend/internal/domain"
	"appointly/backend/internal/events"
	"appointly/backend/internal/store"
)

// memRepo is an in-memory BookingRepository. Transactions are serialized by
// one mutex and roll back by restoring a snapshot.
type memRepo struct {
	mu          sync.Mutex
	bookings    map[uuid.UUID]domain.Booking
	assignments map[uuid.UUID][]domain.BookingServiceAssignment

	// failures are returned by the next transactions before fn runs.
	failures []error
	// failInsert, when set, fails InsertAssignments after the booking row was written.
	failInsert error
	// conflictErr fails HasConflict outside of transactions.
	conflictErr error
	txCount     int
	locked      [][]uuid.UUID
}

func newMemRepo() *memRepo {
	return &memRepo{
		bookings:    map[uuid.UUID]domain.Booking{},
		assignments: map[uuid.UUID][]domain.BookingServiceAssignment{},
	}
}

func (r *memRepo) InStaffTransaction(ctx context.Context, staffIDs []uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.txCount++
	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return err
	}

	bookings, assignments := r.snapshot()
	tx := &memTx{r: r}
	if err := tx.LockStaff(ctx, staffIDs); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		r.bookings, r.assignments = bookings, assignments
		return err
	}
	return nil
}

func (r *memRepo) snapshot() (map[uuid.UUID]domain.Booking, map[uuid.UUID][]domain.BookingServiceAssignment) {
	bookings := make(map[uuid.UUID]domain.Booking, len(r.bookings))
	for k, v := range r.bookings {
		bookings[k] = v
	}
	assignments := make(map[uuid.UUID][]domain.BookingServiceAssignment, len(r.assignments))
	for k, v := range r.assignments {
		assignments[k] = append([]domain.BookingServiceAssignment(nil), v...)
	}
	return bookings, assignments
}

func (r *memRepo) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, []domain.BookingServiceAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return domain.Booking{}, nil, store.ErrNotFound
	}
	return b, append([]domain.BookingServiceAssignment(nil), r.assignments[bookingID]...), nil
}

func (r *memRepo) HasConflict(ctx context.Context, staffID uuid.UUID, window domain.Interval, excludeBookingID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictErr != nil {
		return false, r.conflictErr
	}
	return r.overlaps(staffID, window, excludeBookingID), nil
}

func (r *memRepo) overlaps(staffID uuid.UUID, window domain.Interval, exclude uuid.UUID) bool {
	for id, as := range r.assignments {
		if id == exclude {
			continue
		}
		for _, a := range as {
			if a.Active && a.StaffID == staffID && a.Window().Overlaps(window) {
				return true
			}
		}
	}
	return false
}

func (r *memRepo) bookingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings)
}

func (r *memRepo) activeAssignments(staffID uuid.UUID) []domain.BookingServiceAssignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.BookingServiceAssignment
	for _, as := range r.assignments {
		for _, a := range as {
			if a.Active && a.StaffID == staffID {
				out = append(out, a)
			}
		}
	}
	return out
}

// seed stores a booking directly, bypassing every check.
func (r *memRepo) seed(b domain.Booking, as ...domain.BookingServiceAssignment) domain.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	for i := range as {
		as[i].ID = uuid.New()
		as[i].BookingID = b.ID
		as[i].Position = i
		as[i].Active = b.Status.IsActive()
	}
	r.bookings[b.ID] = b
	r.assignments[b.ID] = as
	return b
}

type memTx struct {
	r *memRepo
}

func (t *memTx) LockStaff(ctx context.Context, staffIDs []uuid.UUID) error {
	if len(staffIDs) > 0 {
		t.r.locked = append(t.r.locked, append([]uuid.UUID(nil), staffIDs...))
	}
	return nil
}

func (t *memTx) HasConflict(ctx context.Context, staffID uuid.UUID, window domain.Interval, excludeBookingID uuid.UUID) (bool, error) {
	return t.r.overlaps(staffID, window, excludeBookingID), nil
}

func (t *memTx) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if _, ok := t.r.bookings[b.ID]; ok {
		return domain.Booking{}, fmt.Errorf("duplicate booking %s", b.ID)
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	t.r.bookings[b.ID] = b
	return b, nil
}

func (t *memTx) GetBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	b, ok := t.r.bookings[bookingID]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (t *memTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if _, ok := t.r.bookings[b.ID]; !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	b.UpdatedAt = time.Now().UTC()
	t.r.bookings[b.ID] = b
	return b, nil
}

func (t *memTx) SetStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) (domain.Booking, error) {
	b, ok := t.r.bookings[bookingID]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	b.Status = status
	t.r.bookings[bookingID] = b
	as := t.r.assignments[bookingID]
	for i := range as {
		as[i].Active = status.IsActive()
	}
	return b, nil
}

func (t *memTx) ListAssignments(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingServiceAssignment, error) {
	out := append([]domain.BookingServiceAssignment(nil), t.r.assignments[bookingID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// InsertAssignments enforces the same non-overlap rule as the storage
// exclusion constraint.
func (t *memTx) InsertAssignments(ctx context.Context, as []domain.BookingServiceAssignment) ([]domain.BookingServiceAssignment, error) {
	if t.r.failInsert != nil {
		return nil, t.r.failInsert
	}
	out := make([]domain.BookingServiceAssignment, len(as))
	for i, a := range as {
		if a.Active && t.r.overlaps(a.StaffID, a.Window(), uuid.Nil) {
			return nil, fmt.Errorf("%w: %w", store.ErrRetryable, store.ErrConflict)
		}
		a.ID = uuid.New()
		out[i] = a
		t.r.assignments[a.BookingID] = append(t.r.assignments[a.BookingID], a)
	}
	return out, nil
}

func (t *memTx) DeleteAssignments(ctx context.Context, bookingID uuid.UUID) error {
	delete(t.r.assignments, bookingID)
	return nil
}

type memCatalog struct {
	services map[uuid.UUID]domain.CatalogService
	// staff lists active staff per company in ascending id order.
	staff map[uuid.UUID][]uuid.UUID
}

func (c *memCatalog) GetService(ctx context.Context, companyID, serviceID uuid.UUID) (domain.CatalogService, error) {
	s, ok := c.services[serviceID]
	if !ok || s.CompanyID != companyID || !s.IsActive {
		return domain.CatalogService{}, store.ErrNotFound
	}
	return s, nil
}

func (c *memCatalog) AnyActiveStaffOf(ctx context.Context, companyID uuid.UUID) (uuid.UUID, error) {
	ids := c.staff[companyID]
	if len(ids) == 0 {
		return uuid.Nil, store.ErrNotFound
	}
	return ids[0], nil
}

func (c *memCatalog) IsActiveStaffOf(ctx context.Context, companyID, staffID uuid.UUID) (bool, error) {
	for _, id := range c.staff[companyID] {
		if id == staffID {
			return true, nil
		}
	}
	return false, nil
}

func (c *memCatalog) ListActiveStaff(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	return append([]uuid.UUID(nil), c.staff[companyID]...), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingInvalidator struct {
	mu    sync.Mutex
	staff []uuid.UUID
}

func (i *recordingInvalidator) InvalidateStaff(ctx context.Context, staffIDs ...uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.staff = append(i.staff, staffIDs...)
	return nil
}
