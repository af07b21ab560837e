package models

// EffectType tags the concrete effect kind for consumers that serialize the
// effect list.
type EffectType string

const (
	EffectStageChange     EffectType = "stage_change"
	EffectFieldUpdate     EffectType = "field_update"
	EffectNotification    EffectType = "notification_intent"
	EffectIntegrationCall EffectType = "integration_call_intent"
)

// Effect is a side-effect request produced by the engine for an external
// executor. The engine itself performs no I/O: applying a stage change,
// writing a field, sending a notification or calling an integration is the
// caller's job.
type Effect interface {
	EffectType() EffectType
}

// StageChangeRequest asks for the ticket to move to another stage. Produced
// by status_change actions; the orchestrator applies it in-memory during the
// rule pass and rejects targets missing from the definition.
type StageChangeRequest struct {
	ToStageID string `json:"to_stage_id"`
}

func (StageChangeRequest) EffectType() EffectType { return EffectStageChange }

// FieldUpdate asks for a ticket field to be set.
type FieldUpdate struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func (FieldUpdate) EffectType() EffectType { return EffectFieldUpdate }

// NotificationIntent asks the external dispatcher to notify a role using a
// template. Deduplication is the dispatcher's concern.
type NotificationIntent struct {
	RecipientRole string `json:"recipient_role"`
	TemplateID    string `json:"template_id"`
	TicketID      string `json:"ticket_id"`
}

func (NotificationIntent) EffectType() EffectType { return EffectNotification }

// IntegrationCallIntent forwards an integration action's config verbatim to
// the external integration runner.
type IntegrationCallIntent struct {
	TicketID string         `json:"ticket_id"`
	Config   map[string]any `json:"config"`
}

func (IntegrationCallIntent) EffectType() EffectType { return EffectIntegrationCall }
