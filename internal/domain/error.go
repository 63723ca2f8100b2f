package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOperationFailed = errors.New("operation failed")
	ErrReadDatabaseRow = errors.New("failed to read database row")

	// Payments
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrSignatureMismatch      = errors.New("payment signature mismatch")
	ErrAlreadyFailed          = errors.New("payment already failed")
	ErrOrphanedRecordConflict = errors.New("orphaned payment record conflict")
	ErrRetryable              = errors.New("temporary conflict, retry the request")
	ErrAlreadyLinked          = errors.New("payment already linked to a track")
	ErrRateLimited            = errors.New("too many requests")

	// Subscriptions and usage
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrCrossTrackConflict   = errors.New("subscription belongs to a different track")
	ErrUsageLimitReached    = errors.New("usage limit reached")
)

// ConstraintVersion is the Constraint reported when a conditional update lost
// to a concurrent write of the same row.
const ConstraintVersion = "version"

// ConflictError is returned by repositories when a write hits a uniqueness
// constraint or a row version check. Constraint names what fired, when known.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	if e.Constraint == "" {
		return "unique constraint violation"
	}
	if e.Constraint == ConstraintVersion {
		return "row changed by a concurrent write"
	}
	return fmt.Sprintf("unique constraint violation on %s", e.Constraint)
}

// Is lets errors.Is(err, ErrAlreadyExists) match conflicts.
func (e *ConflictError) Is(target error) bool { return target == ErrAlreadyExists }

// IsConflict reports whether err carries a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsStaleWrite reports whether err is a lost version check. The caller should
// re-read the row and apply its change again.
func IsStaleWrite(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Constraint == ConstraintVersion
}
