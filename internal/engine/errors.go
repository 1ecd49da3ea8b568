package engine

import (
	"errors"
	"fmt"
)

// Category classifies an engine error for the caller. Each maps to one
// transport-level outcome at the boundary; the engine itself only ever
// recovers from idempotent replays and transient gateway faults.
type Category string

const (
	CategoryValidation         Category = "VALIDATION"
	CategoryLimitExceeded      Category = "LIMIT_EXCEEDED"
	CategoryInsufficientFunds  Category = "INSUFFICIENT_FUNDS"
	CategoryAccountNotFound    Category = "ACCOUNT_NOT_FOUND"
	CategoryNotFound           Category = "NOT_FOUND"
	CategoryAlreadyReversed    Category = "ALREADY_REVERSED"
	CategoryServiceUnavailable Category = "SERVICE_UNAVAILABLE"
	CategoryManualAction       Category = "MANUAL_ACTION_REQUIRED"
	CategoryInvalidState       Category = "INVALID_STATE"
	CategoryInternal           Category = "INTERNAL"
)

// Error is the typed error every engine operation returns on failure. Reason
// is a stable machine-readable code; Message is for humans.
type Error struct {
	Category Category
	Reason   string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(category Category, reason, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Reason:   reason,
		Message:  fmt.Sprintf(format, args...),
	}
}

func wrapError(category Category, reason string, err error, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Reason:   reason,
		Message:  fmt.Sprintf(format, args...),
		Err:      err,
	}
}

// CategoryOf extracts the category from any error returned by the engine.
// Non-engine errors report CategoryInternal.
func CategoryOf(err error) Category {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Category
	}
	return CategoryInternal
}
