package engine

import (
	"context"
	"fmt"

	"github.com/stageflow/stageflow/pkg/conditions"
	"github.com/stageflow/stageflow/pkg/models"
)

// ApprovalChecker reads approval state from the external approvals
// collaborator. The engine only asks whether a matching approved record
// exists; routing and recording approvals is out of scope.
type ApprovalChecker interface {
	HasApproval(ctx context.Context, ticketID string, roles []string) (bool, error)
}

// Validator decides whether a requested transition is legal. Checks run in
// a fixed order and short-circuit: structural existence and terminality,
// then roles and conditions, then the comment and approval requirements.
type Validator struct {
	approvals ApprovalChecker
}

func NewValidator(approvals ApprovalChecker) *Validator {
	return &Validator{approvals: approvals}
}

// Validate checks the transition request against the definition. It returns
// the resolved transition on success so the caller does not look it up twice.
func (v *Validator) Validate(
	ctx context.Context,
	body *models.DefinitionBody,
	ticket *models.TicketSnapshot,
	transitionID string,
	actor models.Actor,
	metadata models.TransitionMetadata,
) (*models.Transition, error) {
	transition := body.TransitionByID(transitionID)
	if transition == nil || transition.FromStageID != ticket.CurrentStageID {
		return nil, ErrNoSuchTransition
	}

	current := body.StageByID(ticket.CurrentStageID)
	if current == nil {
		return nil, fmt.Errorf("%w: stage %q not in definition", ErrConfiguration, ticket.CurrentStageID)
	}

	if current.IsFinal() {
		return nil, ErrTerminalStage
	}

	if !transition.AllowsRole(actor.Roles) {
		return nil, ErrUnauthorized
	}

	if !conditions.EvaluateAll(transition.Conditions, ticket.Fields) {
		return nil, ErrConditionsNotMet
	}

	if transition.RequiresComment && metadata.Comment == "" {
		return nil, ErrCommentRequired
	}

	if transition.RequiresApproval {
		approved, err := v.approvals.HasApproval(ctx, ticket.ID, transition.ApprovalRoles)
		if err != nil {
			return nil, fmt.Errorf("checking approval state: %w", err)
		}

		if !approved {
			return nil, ErrApprovalPending
		}
	}

	return transition, nil
}

// AvailableTransitions returns the transitions out of the ticket's current
// stage that the actor could legally take right now. Used by the UI to
// decide which buttons to show; approval-gated transitions that merely lack
// the approval record are included, flagged by the caller via Validate.
func (v *Validator) AvailableTransitions(
	ctx context.Context,
	body *models.DefinitionBody,
	ticket *models.TicketSnapshot,
	actor models.Actor,
) []*models.Transition {
	current := body.StageByID(ticket.CurrentStageID)
	if current == nil || current.IsFinal() {
		return nil
	}

	out := make([]*models.Transition, 0)

	for _, t := range body.TransitionsFrom(ticket.CurrentStageID) {
		if !t.AllowsRole(actor.Roles) {
			continue
		}

		if !conditions.EvaluateAll(t.Conditions, ticket.Fields) {
			continue
		}

		out = append(out, t)
	}

	return out
}
