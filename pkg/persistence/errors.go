// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a workflow definition was not found by the given identifier.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrNoDefaultDefinition indicates no active default definition exists for the workflow type.
	ErrNoDefaultDefinition = errors.New("no default workflow definition for type")

	// ErrTicketNotFound indicates a ticket was not found by the given identifier.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrTicketAlreadyExists indicates a ticket with the same identifier already exists.
	ErrTicketAlreadyExists = errors.New("ticket already exists")

	// ErrVersionConflict indicates the optimistic-concurrency check failed on write.
	ErrVersionConflict = errors.New("ticket version conflict")
)

// StoreError wraps persistence errors with additional context.
type StoreError struct {
	Op       string // Operation being performed (e.g., "DefinitionByID", "SaveTicket")
	EntityID string // Definition or ticket ID if applicable
	Err      error  // Underlying error
	Message  string // Additional context message
}

func (e *StoreError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for %s: %s (%v)", e.Op, e.EntityID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, entityID string, err error) *StoreError {
	return &StoreError{
		Op:       op,
		EntityID: entityID,
		Err:      err,
	}
}

// IsDefinitionNotFound checks if an error indicates a definition was not found.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsTicketNotFound checks if an error indicates a ticket was not found.
func IsTicketNotFound(err error) bool {
	return errors.Is(err, ErrTicketNotFound)
}

// IsVersionConflict checks if an error indicates an optimistic-concurrency conflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
