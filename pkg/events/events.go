// Package events defines event types and structures for ticket lifecycle
// notifications.
package events

import (
	"time"

	"github.com/stageflow/stageflow/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "stageflow.events"                          // Ticket lifecycle events
const NotificationTopic = "stageflow.notification.intents" // Intents for the external dispatcher

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Ticket lifecycle events.
	TicketTransitionedEvent EventType = "ticket.transitioned"
	TicketInitializedEvent  EventType = "ticket.initialized"

	// SLA sweep events.
	TicketSLAWarningEvent EventType = "ticket.sla.warning"
	TicketSLABreachEvent  EventType = "ticket.sla.breach"

	// Effect delivery events.
	NotificationIntentEvent EventType = "notification.intent"
	IntegrationCallEvent    EventType = "integration.call"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TicketID  string         `json:"ticket_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TicketTransitioned records a completed transition, including any chained
// automatic stage changes.
type TicketTransitioned struct {
	BaseEvent

	WorkflowDefinitionID string `json:"workflow_definition_id"`
	TransitionID         string `json:"transition_id"`
	FromStageID          string `json:"from_stage_id"`
	ToStageID            string `json:"to_stage_id"`
	ActorID              string `json:"actor_id"`
	AutoDepth            int    `json:"auto_depth,omitempty"`
}

func (t TicketTransitioned) GetType() EventType {
	return TicketTransitionedEvent
}

// TicketInitialized records a ticket entering its workflow's initial stage.
type TicketInitialized struct {
	BaseEvent

	WorkflowDefinitionID string `json:"workflow_definition_id"`
	StageID              string `json:"stage_id"`
	ActorID              string `json:"actor_id"`
}

func (t TicketInitialized) GetType() EventType {
	return TicketInitializedEvent
}

// TicketSLAWarning is emitted by the sweep when a ticket crosses its stage's
// warning threshold. Consumers deduplicate by (ticket_id, stage_id,
// threshold): re-running a sweep after a partial failure re-emits the same
// warnings.
type TicketSLAWarning struct {
	BaseEvent

	StageID         string    `json:"stage_id"`
	StageEnteredAt  time.Time `json:"stage_entered_at"`
	ElapsedFraction float64   `json:"elapsed_fraction"`
}

func (t TicketSLAWarning) GetType() EventType {
	return TicketSLAWarningEvent
}

// TicketSLABreach is emitted by the sweep when a ticket exceeds its stage's
// SLA duration.
type TicketSLABreach struct {
	BaseEvent

	StageID         string    `json:"stage_id"`
	StageEnteredAt  time.Time `json:"stage_entered_at"`
	ElapsedFraction float64   `json:"elapsed_fraction"`
}

func (t TicketSLABreach) GetType() EventType {
	return TicketSLABreachEvent
}

// NotificationIntentEmitted wraps a notification effect for the external
// dispatcher.
type NotificationIntentEmitted struct {
	BaseEvent

	Intent models.NotificationIntent `json:"intent"`
}

func (n NotificationIntentEmitted) GetType() EventType {
	return NotificationIntentEvent
}

// IntegrationCallRequested wraps an integration effect for the external
// integration runner.
type IntegrationCallRequested struct {
	BaseEvent

	Call models.IntegrationCallIntent `json:"call"`
}

func (i IntegrationCallRequested) GetType() EventType {
	return IntegrationCallEvent
}
