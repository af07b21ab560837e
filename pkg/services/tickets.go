package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/sla"
)

// Tickets drives tickets through their workflows. It loads state from the
// store, delegates the pure transition algorithm to the orchestrator, writes
// the new snapshot back under the optimistic-concurrency check, and fans the
// resulting effects out onto the event bus.
type Tickets struct {
	persistence  persistence.Persistence
	orchestrator *engine.Orchestrator
	eventBus     eventbus.EventPublisher
	logger       *slog.Logger
}

func NewTickets(p persistence.Persistence, orchestrator *engine.Orchestrator, bus eventbus.EventPublisher, logger *slog.Logger) *Tickets {
	return &Tickets{
		persistence:  p,
		orchestrator: orchestrator,
		eventBus:     bus,
		logger:       logger.With("module", "ticket_service"),
	}
}

// CreateTicketRequest creates a ticket of a workflow type. When
// DefinitionID is empty the type's active default definition is used.
type CreateTicketRequest struct {
	WorkflowType models.WorkflowType `json:"workflow_type" validate:"required"`
	DefinitionID string              `json:"definition_id,omitempty"`
	Fields       map[string]any      `json:"fields"`
}

// TicketResult is the outcome of a ticket mutation: the committed snapshot
// and the effects the engine produced.
type TicketResult struct {
	Ticket  *models.TicketSnapshot `json:"ticket"`
	Effects []models.Effect        `json:"effects,omitempty"`
}

// Create builds a new ticket, binds it to a definition, places it in the
// initial stage (following any automatic advancement) and persists it.
func (s *Tickets) Create(ctx context.Context, req CreateTicketRequest, actor models.Actor) (*TicketResult, error) {
	definition, err := s.resolveDefinition(ctx, req)
	if err != nil {
		return nil, err
	}

	fields := req.Fields
	if fields == nil {
		fields = make(map[string]any)
	}

	ticket := &models.TicketSnapshot{
		ID:                   uuid.New().String(),
		WorkflowType:         definition.WorkflowType,
		WorkflowDefinitionID: definition.ID,
		Fields:               fields,
	}

	effects, err := s.orchestrator.Initialize(ctx, ticket, actor)
	if err != nil {
		return nil, err
	}

	if err := s.persistence.TicketRepository().CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("creating ticket: %w", err)
	}

	s.publish(ctx, ticket.ID, events.TicketInitialized{
		BaseEvent:            s.baseEvent(events.TicketInitializedEvent, ticket.ID),
		WorkflowDefinitionID: definition.ID,
		StageID:              ticket.CurrentStageID,
		ActorID:              actor.ID,
	})
	s.publishIntents(ctx, ticket.ID, effects)

	s.logger.InfoContext(ctx, "ticket created",
		"ticket_id", ticket.ID,
		"workflow_type", ticket.WorkflowType,
		"stage_id", ticket.CurrentStageID,
	)

	return &TicketResult{Ticket: ticket, Effects: effects}, nil
}

// ApplyTransition executes a named transition on a ticket. Loads the latest
// snapshot, runs the engine, and writes back; a concurrent writer that got
// there first surfaces as ErrConcurrentModification and the caller retries
// against fresh state.
func (s *Tickets) ApplyTransition(
	ctx context.Context,
	ticketID, transitionID string,
	actor models.Actor,
	metadata models.TransitionMetadata,
) (*TicketResult, error) {
	repo := s.persistence.TicketRepository()

	ticket, err := repo.TicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	fromStageID := ticket.CurrentStageID

	effects, err := s.orchestrator.ApplyTransition(ctx, ticket, transitionID, actor, metadata)
	if err != nil {
		return nil, err
	}

	if err := repo.SaveTicket(ctx, ticket); err != nil {
		if persistence.IsVersionConflict(err) {
			return nil, engine.NewTransitionError("ApplyTransition", ticketID, transitionID, engine.ErrConcurrentModification)
		}

		return nil, fmt.Errorf("saving ticket: %w", err)
	}

	s.publish(ctx, ticket.ID, events.TicketTransitioned{
		BaseEvent:            s.baseEvent(events.TicketTransitionedEvent, ticket.ID),
		WorkflowDefinitionID: ticket.WorkflowDefinitionID,
		TransitionID:         transitionID,
		FromStageID:          fromStageID,
		ToStageID:            ticket.CurrentStageID,
		ActorID:              actor.ID,
		AutoDepth:            autoDepth(effects),
	})
	s.publishIntents(ctx, ticket.ID, effects)

	return &TicketResult{Ticket: ticket, Effects: effects}, nil
}

// Get fetches a ticket snapshot.
func (s *Tickets) Get(ctx context.Context, ticketID string) (*models.TicketSnapshot, error) {
	return s.persistence.TicketRepository().TicketByID(ctx, ticketID)
}

// AvailableTransitions lists the transitions the actor could take right now.
func (s *Tickets) AvailableTransitions(ctx context.Context, ticketID string, actor models.Actor) ([]*models.Transition, error) {
	ticket, err := s.persistence.TicketRepository().TicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	return s.orchestrator.AvailableTransitions(ctx, ticket, actor)
}

// ValidateTransition runs the validation pass without applying anything.
func (s *Tickets) ValidateTransition(
	ctx context.Context,
	ticketID, transitionID string,
	actor models.Actor,
	metadata models.TransitionMetadata,
) error {
	ticket, err := s.persistence.TicketRepository().TicketByID(ctx, ticketID)
	if err != nil {
		return err
	}

	return s.orchestrator.ValidateOnly(ctx, ticket, transitionID, actor, metadata)
}

// SLAStatus computes the ticket's current SLA check on demand, independently
// of the periodic sweep.
func (s *Tickets) SLAStatus(ctx context.Context, ticketID string) (*sla.Check, error) {
	ticket, err := s.persistence.TicketRepository().TicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	definition, err := s.persistence.DefinitionRepository().DefinitionByID(ctx, ticket.WorkflowDefinitionID)
	if err != nil {
		return nil, err
	}

	check := sla.Evaluate(definition.Definition.StageByID(ticket.CurrentStageID), ticket, time.Now().UTC())

	return &check, nil
}

// RecordApproval stores an approval decision for a ticket so a later
// approval-gated transition can pass.
func (s *Tickets) RecordApproval(ctx context.Context, approval *persistence.Approval) error {
	if _, err := s.persistence.TicketRepository().TicketByID(ctx, approval.TicketID); err != nil {
		return err
	}

	return s.persistence.ApprovalRepository().RecordApproval(ctx, approval)
}

// resolveDefinition binds a creation request to a workflow definition:
// a pinned id when given, the type's active default otherwise.
func (s *Tickets) resolveDefinition(ctx context.Context, req CreateTicketRequest) (*models.WorkflowDefinition, error) {
	repo := s.persistence.DefinitionRepository()

	if req.DefinitionID != "" {
		definition, err := repo.DefinitionByID(ctx, req.DefinitionID)
		if err != nil {
			return nil, err
		}

		if !definition.IsActive {
			return nil, &ServiceError{Op: "Create", Code: "definition_inactive", Err: ErrDefinitionInactive}
		}

		return definition, nil
	}

	if req.WorkflowType == "" {
		return nil, NewValidationError("Create", "workflow_type", "workflow_type is required", ErrInvalidRequest)
	}

	return repo.DefaultDefinition(ctx, req.WorkflowType)
}

func (s *Tickets) baseEvent(eventType events.EventType, ticketID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TicketID:  ticketID,
	}
}

// publishIntents forwards notification and integration effects to their
// external executors. Delivery is at-least-once; the bus error is logged,
// not returned, because the state change is already committed.
func (s *Tickets) publishIntents(ctx context.Context, ticketID string, effects []models.Effect) {
	for _, effect := range effects {
		switch e := effect.(type) {
		case models.NotificationIntent:
			s.publish(ctx, ticketID, events.NotificationIntentEmitted{
				BaseEvent: s.baseEvent(events.NotificationIntentEvent, ticketID),
				Intent:    e,
			})
		case models.IntegrationCallIntent:
			s.publish(ctx, ticketID, events.IntegrationCallRequested{
				BaseEvent: s.baseEvent(events.IntegrationCallEvent, ticketID),
				Call:      e,
			})
		}
	}
}

func (s *Tickets) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"ticket_id", key,
			"error", err,
		)
	}
}

// autoDepth counts the automatic stage changes that followed the explicit
// one: the first StageChangeRequest in the effect list is the requested
// transition itself.
func autoDepth(effects []models.Effect) int {
	count := 0

	for _, effect := range effects {
		if _, ok := effect.(models.StageChangeRequest); ok {
			count++
		}
	}

	if count > 0 {
		count--
	}

	return count
}
