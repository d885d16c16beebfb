package models

import (
	"errors"
	"net/http"
)

// ErrorType is the closed failure taxonomy exposed on the wire.
type ErrorType string

const (
	ErrorInvalidRole      ErrorType = "invalid_role"
	ErrorNotAuthenticated ErrorType = "not_authenticated"
	ErrorValidationFailed ErrorType = "validation_failed"
	ErrorCooldown         ErrorType = "cooldown"
	ErrorDailyLimit       ErrorType = "daily_limit"
	ErrorDatabase         ErrorType = "database_error"
)

// ErrProfileLookupFailed signals that the profile subsystem could not be
// read, distinct from "profile read fine but prerequisites are unmet".
var ErrProfileLookupFailed = errors.New("profile lookup failed")

// ErrStateConflict signals that the role state row changed between the
// optimistic rate-limit check and the conditional transition write.
var ErrStateConflict = errors.New("role state concurrently modified")

// SwitchError is a taxonomy-carrying error returned by the role switch flow.
// Details holds machine-readable remediation metadata (missing requirements,
// cooldown end, reset time) for the client.
type SwitchError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *SwitchError) Error() string {
	return string(e.Type) + ": " + e.Message
}

// HTTPStatus maps the taxonomy onto HTTP status codes.
func (e *SwitchError) HTTPStatus() int {
	switch e.Type {
	case ErrorInvalidRole, ErrorValidationFailed:
		return http.StatusBadRequest
	case ErrorNotAuthenticated:
		return http.StatusUnauthorized
	case ErrorCooldown, ErrorDailyLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Expected reports whether the failure is a frequent, user-facing rejection
// that must not be logged at error severity.
func (e *SwitchError) Expected() bool {
	switch e.Type {
	case ErrorInvalidRole, ErrorNotAuthenticated, ErrorValidationFailed, ErrorCooldown, ErrorDailyLimit:
		return true
	}
	return false
}

// NewSwitchError builds a taxonomy error without details.
func NewSwitchError(t ErrorType, message string) *SwitchError {
	return &SwitchError{Type: t, Message: message}
}
