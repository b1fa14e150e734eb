package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrMissingSegment indicates that no segment ID was supplied for a fee
// calculation, neither as a parameter nor in the transaction metadata.
var ErrMissingSegment = errors.New("segment ID is required for fee calculation")

// ErrFeeConfiguration indicates the fee engine integration is misconfigured
// (feature disabled or base URL unset). Never retried.
var ErrFeeConfiguration = errors.New("fee engine configuration error")

// ErrFeeServiceUnavailable indicates the circuit breaker is open and calls to
// the fee engine are being short-circuited. Mapped to HTTP 503.
var ErrFeeServiceUnavailable = errors.New("fee service unavailable")

// ErrInvalidCalculationResponse indicates the fee engine returned a response
// that is not a recognized success shape.
var ErrInvalidCalculationResponse = errors.New("invalid fee calculation response")

// ErrReconciliation indicates the engine returned data inconsistent with the
// transaction invariants (unbalanced totals, negative redistributed amounts).
// Always fatal; never papered over.
var ErrReconciliation = errors.New("fee reconciliation error")

// FeeServiceError wraps a non-2xx response from the fee engine with enough
// detail for the handler layer to propagate the original status.
type FeeServiceError struct {
	StatusCode int
	Code       string
	Details    string
}

func (e *FeeServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("fee engine returned status %d (%s): %s", e.StatusCode, e.Code, e.Details)
	}
	return fmt.Sprintf("fee engine returned status %d: %s", e.StatusCode, e.Details)
}
