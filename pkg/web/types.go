// Package web provides HTTP request and response types for the ticket
// workflow API.
package web

import "github.com/stageflow/stageflow/pkg/models"

// CreateDefinitionRequest represents the request body for authoring a new
// workflow definition.
type CreateDefinitionRequest struct {
	WorkflowType models.WorkflowType    `json:"workflow_type" validate:"required,oneof=incident request change cmdb integration"`
	Name         string                 `json:"name"          validate:"required,min=3"`
	Description  string                 `json:"description"`
	IsDefault    bool                   `json:"is_default"`
	Version      string                 `json:"version"`
	Definition   *models.DefinitionBody `json:"definition"    validate:"required"`
}

// UpdateDefinitionRequest represents the request body for revising an
// existing definition. The workflow type is fixed at creation; the body is
// replaced wholesale because a definition revision is reviewed as a unit.
type UpdateDefinitionRequest struct {
	Name        string                 `json:"name"        validate:"required,min=3"`
	Description string                 `json:"description"`
	IsDefault   bool                   `json:"is_default"`
	Version     string                 `json:"version"`
	Definition  *models.DefinitionBody `json:"definition"  validate:"required"`
}

// CreateTicketRequest represents the request body for opening a ticket.
// DefinitionID pins a specific definition; when empty the type's active
// default is used.
type CreateTicketRequest struct {
	WorkflowType models.WorkflowType `json:"workflow_type" validate:"required_without=DefinitionID,omitempty,oneof=incident request change cmdb integration"`
	DefinitionID string              `json:"definition_id,omitempty"`
	Fields       map[string]any      `json:"fields"`
}

// ApplyTransitionRequest represents the request body for executing a
// transition.
type ApplyTransitionRequest struct {
	Comment string `json:"comment,omitempty"`
}

// RecordApprovalRequest represents the request body for recording an
// approval decision on a ticket.
type RecordApprovalRequest struct {
	Role   string `json:"role"   validate:"required"`
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// DefinitionResponse wraps a stored definition with the authoring warnings
// produced while validating it.
type DefinitionResponse struct {
	Definition *models.WorkflowDefinition `json:"definition"`
	Warnings   []string                   `json:"warnings,omitempty"`
}

// TicketResponse wraps a ticket snapshot with the effects produced by the
// mutation that returned it.
type TicketResponse struct {
	Ticket  *models.TicketSnapshot `json:"ticket"`
	Effects []EffectEnvelope       `json:"effects,omitempty"`
}

// EffectEnvelope tags an effect with its kind so clients can switch on it.
type EffectEnvelope struct {
	Type   models.EffectType `json:"type"`
	Effect models.Effect     `json:"effect"`
}

// WrapEffects converts an effect list into tagged envelopes.
func WrapEffects(effects []models.Effect) []EffectEnvelope {
	out := make([]EffectEnvelope, 0, len(effects))

	for _, e := range effects {
		out = append(out, EffectEnvelope{Type: e.EffectType(), Effect: e})
	}

	return out
}
