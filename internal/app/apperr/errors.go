package apperr

import "errors"

// Application error kinds. Handlers translate these to HTTP status codes
// with errors.Is; repositories and services return them wrapped.
var (
	// ErrNotFound requested entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict write collides with existing data owned by someone else
	ErrConflict = errors.New("conflict")
	// ErrSoftConflict write collides with the caller's own earlier write
	ErrSoftConflict = errors.New("already done")
	// ErrInvalidInput request payload failed validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized missing or invalid credentials
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden authenticated but not allowed to act on the entity
	ErrForbidden = errors.New("forbidden")

	// ErrInsufficientFunds debit or transfer would take the balance negative
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAccount account is unknown or soft-disabled
	ErrInvalidAccount = errors.New("invalid account")
	// ErrSameAccount transfer source and destination are the same account
	ErrSameAccount = errors.New("same account")
	// ErrCurrencyMismatch accounts carry different currency tags
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrDuplicateTransaction idempotency key was already committed
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	// ErrInvalidTransition order status change is not in the transition table
	ErrInvalidTransition = errors.New("invalid status transition")
)
