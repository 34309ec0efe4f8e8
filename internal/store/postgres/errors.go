package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"appointly/backend/internal/store"
)

const (
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"

	constraintNoOverlap = "booking_assignments_no_overlap"
)

// mapError translates driver errors into store errors. An exclusion violation
// on the assignment constraint is both a conflict and retryable: another
// allocation committed first and a fresh conflict check will report it.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrRetryable) || errors.Is(err, store.ErrNotFound) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeExclusionViolation:
		if pgErr.ConstraintName == constraintNoOverlap {
			return fmt.Errorf("%w: %w: %s", store.ErrRetryable, store.ErrConflict, pgErr.ConstraintName)
		}
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %w", store.ErrRetryable, err)
	}
	return err
}
