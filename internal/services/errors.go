package services

import (
	"errors"
	"fmt"
)

// Service errors form a small taxonomy the handlers map onto HTTP codes:
// validation failures, precondition failures (trade not in the required
// state, caller not allowed, insufficient balance), and conflicts (lost the
// race for a trade's transition lock). Anything else is treated as an
// internal failure.

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// PreconditionError reports a request that is well-formed but not allowed
// in the current state. Forbidden marks authorization-shaped failures
// (caller not a participant, KYC missing) so handlers can return 403
// instead of 400.
type PreconditionError struct {
	Message   string
	Forbidden bool
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// ConflictError reports a lost race for a trade's transition lock. The
// client should refresh and retry.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func newValidation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func newPrecondition(format string, args ...interface{}) error {
	return &PreconditionError{Message: fmt.Sprintf(format, args...)}
}

func newForbidden(format string, args ...interface{}) error {
	return &PreconditionError{Message: fmt.Sprintf(format, args...), Forbidden: true}
}

func newConflict(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsForbidden reports whether err is an authorization-shaped precondition failure.
func IsForbidden(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe) && pe.Forbidden
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
