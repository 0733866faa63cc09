package errs

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across services and handlers.
var (
	ErrNotFound           = errors.New("not found")
	ErrSignatureInvalid   = errors.New("payment signature invalid")
	ErrNotPaid            = errors.New("order not paid")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrInvalidTransition  = errors.New("invalid order state transition")
)

// ValidationError collects every failed field from one validation pass so the
// client can render all problems at once.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// GatewayError wraps a failed payment gateway call. PublicMessage is safe to
// return to a client; InternalBody is the raw gateway response and stays in
// the logs.
type GatewayError struct {
	StatusCode    int
	PublicMessage string
	InternalBody  string
	Err           error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (status %d): %s", e.StatusCode, e.InternalBody)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient on the gateway side.
func (e *GatewayError) Retryable() bool {
	return e.StatusCode >= 500
}

// AlreadyUsedError reports a second scan of a consumed ticket. It carries the
// original check-in time and the attendee so door staff can see who entered.
type AlreadyUsedError struct {
	UsedAt       time.Time
	AttendeeName string
	Email        string
	Phone        string
	TierLabel    string
}

func (e *AlreadyUsedError) Error() string {
	return fmt.Sprintf("ticket already used at %s by %s", e.UsedAt.Format(time.RFC3339), e.AttendeeName)
}
