package bookings

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"appointly/backend/internal/store"
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

// ConflictError reports the first requested window that overlaps time the
// staff member has already committed. ServiceID is uuid.Nil when the conflict
// could not be attributed to a single service.
type ConflictError struct {
	ServiceID uuid.UUID
	StaffID   uuid.UUID
	Start     time.Time
	End       time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("staff %s is not available between %s and %s",
		e.StaffID, e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
}

func (e *ConflictError) Is(target error) bool {
	return target == store.ErrConflict
}
