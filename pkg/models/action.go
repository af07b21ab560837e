package models

// ActionType discriminates the shape of an action's Config map.
type ActionType string

const (
	ActionTypeStatusChange ActionType = "status_change" // Config: to_stage_id
	ActionTypeAssignment   ActionType = "assignment"    // Config: assignee or assignee_role
	ActionTypeNotification ActionType = "notification"  // Config: recipient_role, template_id
	ActionTypeFieldUpdate  ActionType = "field_update"  // Config: field, value
	ActionTypeIntegration  ActionType = "integration"   // Config: opaque, forwarded verbatim
)

// ActionTrigger names when a stage action runs.
type ActionTrigger string

const (
	TriggerOnEnter ActionTrigger = "on_enter"
	TriggerOnExit  ActionTrigger = "on_exit"
	TriggerManual  ActionTrigger = "manual"
)

// Action is an automation step attached to a stage or a rule. Its Config
// shape is fully determined by Type.
type Action struct {
	ID      string         `json:"id"      validate:"required"`
	Type    ActionType     `json:"type"    validate:"required,oneof=status_change assignment notification field_update integration"`
	Trigger ActionTrigger  `json:"trigger" validate:"omitempty,oneof=on_enter on_exit manual"`
	Config  map[string]any `json:"config,omitempty"`
}

// ConfigString returns a string-valued config entry, empty when absent or
// not a string.
func (a *Action) ConfigString(key string) string {
	v, ok := a.Config[key].(string)
	if !ok {
		return ""
	}

	return v
}
