// Package services provides standardized error types for service layer
// operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest        = errors.New("invalid request")
	ErrDefinitionNil         = errors.New("workflow definition cannot be nil")
	ErrDefinitionBodyNil     = errors.New("workflow definition body cannot be nil")
	ErrNameRequired          = errors.New("workflow definition name is required")
	ErrNoInitialStage        = errors.New("definition must have exactly one initial stage")
	ErrInitialStatusMismatch = errors.New("initial_status must name the initial stage")
	ErrUnknownStageRef       = errors.New("definition references an unknown stage")
	ErrTicketFieldsNil       = errors.New("ticket fields cannot be nil")

	// Business Logic Conflicts (409 Conflict).
	ErrCannotDeactivateDefault = errors.New("cannot deactivate the sole default definition for its type")
	ErrDefinitionInactive      = errors.New("workflow definition is inactive")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrDefinitionNil) ||
		errors.Is(err, ErrDefinitionBodyNil) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrNoInitialStage) ||
		errors.Is(err, ErrInitialStatusMismatch) ||
		errors.Is(err, ErrUnknownStageRef) ||
		errors.Is(err, ErrTicketFieldsNil)
}

// IsConflictError checks if an error is a business logic conflict that
// should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotDeactivateDefault) ||
		errors.Is(err, ErrDefinitionInactive)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
