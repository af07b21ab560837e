// Package engine applies workflow transitions to tickets: it validates a
// requested transition, runs stage actions and automation rules, and returns
// the resulting effect list for an external executor to apply.
package engine

import (
	"errors"
	"fmt"
)

// Engine error taxonomy. All engine operations return these as wrapped
// sentinel errors, never panics: the engine is a decision layer and callers
// map the kinds onto their own surfaces.
var (
	// ErrWorkflowNotFound indicates the ticket's bound definition is missing or inactive.
	ErrWorkflowNotFound = errors.New("workflow definition not found")

	// ErrNoSuchTransition indicates the transition does not exist or does not start at the current stage.
	ErrNoSuchTransition = errors.New("no such transition from current stage")

	// ErrTerminalStage indicates the ticket sits in a final stage, which absorbs.
	ErrTerminalStage = errors.New("current stage is terminal")

	// ErrUnauthorized indicates the actor holds none of the transition's required roles.
	ErrUnauthorized = errors.New("actor is not authorized for transition")

	// ErrConditionsNotMet indicates a transition condition evaluated false.
	ErrConditionsNotMet = errors.New("transition conditions not met")

	// ErrCommentRequired indicates the transition requires a comment and none was supplied.
	ErrCommentRequired = errors.New("transition requires a comment")

	// ErrApprovalPending indicates no matching approval record exists yet.
	ErrApprovalPending = errors.New("transition requires approval")

	// ErrConcurrentModification indicates the write-back lost an optimistic-concurrency race.
	ErrConcurrentModification = errors.New("ticket was modified concurrently")

	// ErrAutoTransitionLoop indicates rule-driven stage changes exceeded the recursion bound.
	ErrAutoTransitionLoop = errors.New("auto-transition loop detected")

	// ErrConfiguration indicates the definition references a nonexistent stage or is otherwise malformed.
	ErrConfiguration = errors.New("workflow definition misconfigured")
)

// TransitionError wraps engine errors with the identifiers needed to act on
// them.
type TransitionError struct {
	Op           string // Operation being performed (e.g., "ApplyTransition", "Validate")
	TicketID     string
	TransitionID string
	Err          error
}

func (e *TransitionError) Error() string {
	if e.TransitionID != "" {
		return fmt.Sprintf("%s failed for ticket %s (transition %s): %v", e.Op, e.TicketID, e.TransitionID, e.Err)
	}

	return fmt.Sprintf("%s failed for ticket %s: %v", e.Op, e.TicketID, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func (e *TransitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTransitionError creates a transition error with context.
func NewTransitionError(op, ticketID, transitionID string, err error) *TransitionError {
	return &TransitionError{
		Op:           op,
		TicketID:     ticketID,
		TransitionID: transitionID,
		Err:          err,
	}
}

// IsUserError reports whether an error is a user-facing rejection (4xx-class)
// rather than an authoring or infrastructure fault.
func IsUserError(err error) bool {
	return errors.Is(err, ErrNoSuchTransition) ||
		errors.Is(err, ErrTerminalStage) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrConditionsNotMet) ||
		errors.Is(err, ErrCommentRequired) ||
		errors.Is(err, ErrApprovalPending) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsOperatorFault reports whether an error indicates an authoring defect
// that should surface in logs and alerts rather than to the requesting user.
func IsOperatorFault(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrAutoTransitionLoop)
}
