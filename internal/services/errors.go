package services

import "errors"

// Domain error taxonomy. Handlers translate these to HTTP codes; jobs
// log them per entity and move on.
var (
	// ErrNotFound means the plan/installment/payment method does not exist
	ErrNotFound = errors.New("record not found")

	// ErrInvalidState means the operation does not apply to the record's
	// current state, e.g. reverting an installment that is not paid
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrInvalidPlanTerms means the plan terms cannot produce a schedule
	ErrInvalidPlanTerms = errors.New("invalid plan terms")

	// ErrDuplicateEvent means an idempotency guard fired. It is a no-op
	// outcome, not a failure.
	ErrDuplicateEvent = errors.New("duplicate payment event")
)

// GatewayError wraps a failed gateway verification or charge call so
// callers can tell system failures from user-fixable ones.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return "gateway " + e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
