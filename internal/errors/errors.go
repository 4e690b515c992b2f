package errors

import "fmt"

// ErrorCode represents a Vessel error code.
type ErrorCode string

const (
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrInvalidArgument   ErrorCode = "INVALID_ARGUMENT"   // 400
	ErrUnauthorized      ErrorCode = "UNAUTHORIZED"       // 403
	ErrResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED" // 429
	ErrConflict          ErrorCode = "CONFLICT"           // 409
	ErrInternal          ErrorCode = "INTERNAL"           // 500
)

// VesselError represents a structured error with code, status, and details.
type VesselError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *VesselError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNotFound creates a 404 error for a missing entity. Reads that fail
// authorization also return this, so probing cannot confirm existence.
func NewNotFound(kind, identifier string) *VesselError {
	return &VesselError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewInvalidArgument creates a 400 error for malformed or contradictory input.
func NewInvalidArgument(msg string) *VesselError {
	return &VesselError{
		Code:    ErrInvalidArgument,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 403 error. Used only for mutations on capsules
// the caller can already see; unauthorized reads return NewNotFound.
func NewUnauthorized(msg string) *VesselError {
	return &VesselError{
		Code:    ErrUnauthorized,
		Status:  403,
		Message: msg,
	}
}

// NewResourceExhausted creates a 429 error for quota or concurrency ceilings.
func NewResourceExhausted(msg string) *VesselError {
	return &VesselError{
		Code:    ErrResourceExhausted,
		Status:  429,
		Message: msg,
	}
}

// NewConflict creates a 409 error, e.g. an idempotency key reused with a
// different payload than the original request.
func NewConflict(msg string) *VesselError {
	return &VesselError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewInternal creates a 500 error for host or storage failures not
// attributable to caller input.
func NewInternal(err error) *VesselError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &VesselError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a VesselError with the given code.
func Is(err error, code ErrorCode) bool {
	if vErr, ok := err.(*VesselError); ok {
		return vErr.Code == code
	}
	return false
}
