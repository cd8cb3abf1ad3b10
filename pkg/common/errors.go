package common

import "errors"

// ErrorKind classifies an application error for presentation and recovery
// decisions: validation failures never reach the network, read failures
// degrade to stale data, write failures surface for an explicit user retry.
type ErrorKind string

const (
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindNetworkFailure      ErrorKind = "network_failure"
	KindValidation          ErrorKind = "validation_error"
	KindNotFound            ErrorKind = "not_found"
	KindConflict            ErrorKind = "conflict"
	KindPositionUnavailable ErrorKind = "position_unavailable"
	KindUnauthorized        ErrorKind = "unauthorized"
)

// Sentinel errors for errors.Is checks
var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNetworkFailure      = errors.New("network failure")
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("resource not found")
	ErrConflict            = errors.New("resource conflict")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrUnauthorized        = errors.New("unauthorized")
)

// AppError is an application error carrying a kind and a human-readable
// message suitable for direct display on a screen.
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the cause chain alongside the kind sentinel.
func (e *AppError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sentinelFor(e.Kind)
}

// Is matches both the kind sentinel and the wrapped cause.
func (e *AppError) Is(target error) bool {
	if target == sentinelFor(e.Kind) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindNetworkFailure:
		return ErrNetworkFailure
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindPositionUnavailable:
		return ErrPositionUnavailable
	case KindUnauthorized:
		return ErrUnauthorized
	default:
		return nil
	}
}

// NewPermissionDeniedError reports a denied device permission (location).
func NewPermissionDeniedError(message string) *AppError {
	return &AppError{Kind: KindPermissionDenied, Message: message}
}

// NewNetworkError wraps a failed remote call.
func NewNetworkError(message string, err error) *AppError {
	return &AppError{Kind: KindNetworkFailure, Message: message, Err: err}
}

// NewValidationError reports malformed input caught before any remote call.
func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

// NewNotFoundError reports a missing resource (unknown ride id and the like).
func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

// NewConflictError reports an operation rejected by a concurrent state,
// such as booking while a current ride already exists.
func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

// NewPositionUnavailableError reports a location fix that could not be obtained.
func NewPositionUnavailableError(message string) *AppError {
	return &AppError{Kind: KindPositionUnavailable, Message: message}
}

// NewUnauthorizedError reports a missing or expired session.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

// KindOf returns the ErrorKind of err if it is (or wraps) an AppError.
func KindOf(err error) (ErrorKind, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}
