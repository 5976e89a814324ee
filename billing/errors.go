/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All engine error types in one place. Callers branch with errors.Is;
  structured errors carry the context needed for useful messages.

ERROR CATEGORIES:
  1. Lease errors - Missing or contradictory lease state (fatal)
  2. Ledger errors - Payments referencing unknown periods (fail-safe)
  3. Gateway errors - External checkout failures (retryable)

FAIL-SAFE RULE:
  No error may silently produce an under-billed amount. A payment that
  references a non-existent period is reported as a LedgerInconsistency
  and the unmatched slice of the payment settles nothing.
*/
package billing

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidLeaseState is returned when the lease dates are missing or
	// contradictory. The summary cannot be computed.
	ErrInvalidLeaseState = errors.New("invalid lease state")

	// ErrLeaseNotStarted is returned when the evaluation date falls before
	// the lease start. A lease cannot be evaluated before it starts.
	ErrLeaseNotStarted = errors.New("lease has not started")

	// ErrNoActiveLease indicates the tenant has no lease in effect. This is
	// recoverable: the summary is returned with zero amounts.
	ErrNoActiveLease = errors.New("no active lease")

	// ErrGatewayUnavailable is returned when the payment gateway does not
	// acknowledge a link request. Retryable; the resolver's output is
	// unaffected and can be recomputed.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrDuplicateIdempotencyKey is returned when a payment with the same
	// idempotency key already exists. Expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTenantNotFound is returned when a referenced tenant doesn't exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrPaymentNotFound is returned when a receipt lookup misses.
	ErrPaymentNotFound = errors.New("payment not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// LeaseStateError describes why a lease cannot be evaluated.
type LeaseStateError struct {
	LeaseID LeaseID
	Reason  string
}

func (e *LeaseStateError) Error() string {
	return fmt.Sprintf("invalid lease state for %s: %s", e.LeaseID, e.Reason)
}

func (e *LeaseStateError) Unwrap() error { return ErrInvalidLeaseState }

// LedgerInconsistency records a payment referencing a period that does
// not exist in the schedule. The period is treated as unpaid: the engine
// biases toward charging correctness, never under-billing.
type LedgerInconsistency struct {
	PaymentID PaymentID
	Ref       PeriodRef
	PaidDate  time.Time
}

func (e LedgerInconsistency) Error() string {
	return fmt.Sprintf("payment %s references unknown period %s", e.PaymentID, e.Ref)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrLeaseNotStarted) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
