package models

// StageType classifies a stage within the lifecycle graph.
type StageType string

const (
	StageTypeInitial      StageType = "initial"      // Entry stage, exactly one per definition
	StageTypeIntermediate StageType = "intermediate" // Regular stage
	StageTypeFinal        StageType = "final"        // Terminal, no transitions out
)

// Stage is a named state in a ticket's lifecycle. Color, Icon and Order are
// display metadata the engine carries verbatim and never interprets.
type Stage struct {
	ID            string          `json:"id"    validate:"required"`
	Name          string          `json:"name"  validate:"required"`
	Type          StageType       `json:"type"  validate:"required,oneof=initial intermediate final"`
	Color         string          `json:"color,omitempty"`
	Icon          string          `json:"icon,omitempty"`
	Order         int             `json:"order"`
	Actions       []*Action       `json:"actions,omitempty"`
	Notifications []*Notification `json:"notifications,omitempty"`
	SLA           *SLAConfig      `json:"sla,omitempty"`
}

// ActionsFor returns the stage's actions registered for the given trigger.
func (s *Stage) ActionsFor(trigger ActionTrigger) []*Action {
	out := make([]*Action, 0)

	for _, a := range s.Actions {
		if a.Trigger == trigger {
			out = append(out, a)
		}
	}

	return out
}

// IsFinal reports whether the stage is terminal.
func (s *Stage) IsFinal() bool {
	return s.Type == StageTypeFinal
}

// SLAConfig attaches a service-level clock to a stage.
type SLAConfig struct {
	DurationHours           float64 `json:"duration_hours"            validate:"required,gt=0"`
	WarningThresholdPercent float64 `json:"warning_threshold_percent" validate:"min=0,max=100"`
}

// NotificationTrigger names the moment a stage notification fires.
type NotificationTrigger string

const (
	NotifyOnEnter    NotificationTrigger = "on_enter"
	NotifyOnExit     NotificationTrigger = "on_exit"
	NotifySLAWarning NotificationTrigger = "sla_warning"
	NotifySLABreach  NotificationTrigger = "sla_breach"
)

// Notification declares a recipient role and template for a stage event.
// Delivery is external; the engine only emits intents.
type Notification struct {
	RecipientRole string              `json:"recipient_role" validate:"required"`
	Trigger       NotificationTrigger `json:"trigger"        validate:"required,oneof=on_enter on_exit sla_warning sla_breach"`
	TemplateID    string              `json:"template_id"    validate:"required"`
}
