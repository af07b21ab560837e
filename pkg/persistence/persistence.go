// Package persistence provides data storage abstraction for workflow
// definitions, tickets and approvals.
package persistence

import (
	"context"

	"github.com/stageflow/stageflow/pkg/models"
)

// DefinitionRepository stores versioned workflow definitions. Definitions
// are never hard-deleted; deactivation clears IsActive.
type DefinitionRepository interface {
	Definitions(ctx context.Context, workflowType models.WorkflowType) ([]*models.WorkflowDefinition, error)
	ActiveDefinitions(ctx context.Context, workflowType models.WorkflowType) ([]*models.WorkflowDefinition, error)
	DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	DefaultDefinition(ctx context.Context, workflowType models.WorkflowType) (*models.WorkflowDefinition, error)
	SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error
}

// TicketRepository stores ticket snapshots. SaveTicket performs an
// optimistic-concurrency check: the write succeeds only when the stored
// version still matches the snapshot's version, and the stored version is
// incremented on success.
type TicketRepository interface {
	TicketByID(ctx context.Context, id string) (*models.TicketSnapshot, error)
	OpenTickets(ctx context.Context) ([]*models.TicketSnapshot, error)
	CreateTicket(ctx context.Context, ticket *models.TicketSnapshot) error
	SaveTicket(ctx context.Context, ticket *models.TicketSnapshot) error
}

// ApprovalRepository reads and records approval evidence for
// approval-gated transitions.
type ApprovalRepository interface {
	HasApproval(ctx context.Context, ticketID string, roles []string) (bool, error)
	RecordApproval(ctx context.Context, approval *Approval) error
}

// Approval is a recorded approval decision for a ticket.
type Approval struct {
	TicketID   string `json:"ticket_id"`
	Role       string `json:"role"`
	ApproverID string `json:"approver_id"`
	Status     string `json:"status"` // "approved" or "rejected"
}

const ApprovalStatusApproved = "approved"

type Persistence interface {
	DefinitionRepository() DefinitionRepository
	TicketRepository() TicketRepository
	ApprovalRepository() ApprovalRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
