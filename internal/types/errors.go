package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the escrow operations. Handlers map these onto HTTP
// status codes; services wrap them with context where useful.
var (
	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized indicates the acting party is not allowed to perform the operation
	ErrNotAuthorized = errors.New("actor is not authorized for this action")

	// ErrAccountNotReady indicates the agency has no connected merchant account yet
	ErrAccountNotReady = errors.New("agency has not completed payment onboarding")

	// ErrAlreadyFunded indicates a successful payment already exists for the job
	ErrAlreadyFunded = errors.New("job already has a successful payment")

	// ErrAlreadyPaidOut indicates a payout already exists for the job
	ErrAlreadyPaidOut = errors.New("job already has a payout")

	// ErrPayoutAlreadyIssued blocks a refund once money has been sent to the agency
	ErrPayoutAlreadyIssued = errors.New("payout already issued, refund is not possible")

	// ErrStaleStatus indicates a concurrent writer changed the job status first
	ErrStaleStatus = errors.New("job status changed concurrently, re-read and retry")

	// ErrNoPendingPayment indicates there is no payment attempt to confirm or reconcile
	ErrNoPendingPayment = errors.New("no pending payment exists for this job")
)

// IllegalTransitionError is returned when a requested status change is not an
// edge in the job transition table. The job is left unchanged.
type IllegalTransitionError struct {
	Current   string
	Requested string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %q to %q", e.Current, e.Requested)
}

// TerminalStateError is returned when any transition is attempted on a job in
// a terminal status (paid_out, cancelled, refunded).
type TerminalStateError struct {
	Current string
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("job is in terminal state %q and accepts no further transitions", e.Current)
}

// ProcessorError wraps a failure reported by the external payment processor.
// Transient errors (network, timeout, processor 5xx) are retryable; rejected
// errors (e.g. card declined, malformed amount) are terminal for the attempt.
type ProcessorError struct {
	Transient bool
	Code      string
	Message   string
}

func (e *ProcessorError) Error() string {
	kind := "rejected"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("processor %s error [%s]: %s", kind, e.Code, e.Message)
}

// NewProcessorTransient builds a retryable processor error
func NewProcessorTransient(code, message string) *ProcessorError {
	return &ProcessorError{Transient: true, Code: code, Message: message}
}

// NewProcessorRejected builds a terminal processor error
func NewProcessorRejected(code, message string) *ProcessorError {
	return &ProcessorError{Transient: false, Code: code, Message: message}
}

// IsProcessorTransient reports whether err is a retryable processor failure
func IsProcessorTransient(err error) bool {
	var pe *ProcessorError
	return errors.As(err, &pe) && pe.Transient
}
