// Package actions resolves workflow actions into effects. The dispatcher
// performs no I/O: it only decides what should happen, and the orchestrator
// or an external executor applies the result.
package actions

import (
	"log/slog"

	"github.com/stageflow/stageflow/pkg/models"
)

// Config keys read per action type.
const (
	configToStageID     = "to_stage_id"
	configField         = "field"
	configValue         = "value"
	configAssignee      = "assignee"
	configRecipientRole = "recipient_role"
	configTemplateID    = "template_id"
)

// Dispatcher turns actions into effect lists.
type Dispatcher struct {
	logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger.With("module", "action_dispatcher"),
	}
}

// Dispatch resolves a single action against the ticket snapshot. Malformed
// configs produce no effects and are logged; a status_change naming a stage
// missing from the definition still produces its effect, which the
// orchestrator rejects at apply time.
func (d *Dispatcher) Dispatch(action *models.Action, ticket *models.TicketSnapshot, _ models.ExecutionContext) []models.Effect {
	if action == nil {
		return nil
	}

	switch action.Type {
	case models.ActionTypeStatusChange:
		target := action.ConfigString(configToStageID)
		if target == "" {
			d.logger.Warn("status_change action without to_stage_id", "action_id", action.ID)

			return nil
		}

		return []models.Effect{models.StageChangeRequest{ToStageID: target}}

	case models.ActionTypeFieldUpdate:
		field := action.ConfigString(configField)
		if field == "" {
			d.logger.Warn("field_update action without field", "action_id", action.ID)

			return nil
		}

		return []models.Effect{models.FieldUpdate{Field: field, Value: action.Config[configValue]}}

	case models.ActionTypeAssignment:
		assignee := action.ConfigString(configAssignee)
		if assignee == "" {
			d.logger.Warn("assignment action without assignee", "action_id", action.ID)

			return nil
		}

		return []models.Effect{models.FieldUpdate{Field: "assignee", Value: assignee}}

	case models.ActionTypeNotification:
		role := action.ConfigString(configRecipientRole)
		template := action.ConfigString(configTemplateID)

		if role == "" || template == "" {
			d.logger.Warn("notification action missing recipient_role or template_id", "action_id", action.ID)

			return nil
		}

		return []models.Effect{models.NotificationIntent{
			RecipientRole: role,
			TemplateID:    template,
			TicketID:      ticket.ID,
		}}

	case models.ActionTypeIntegration:
		return []models.Effect{models.IntegrationCallIntent{
			TicketID: ticket.ID,
			Config:   action.Config,
		}}

	default:
		d.logger.Warn("unknown action type", "action_id", action.ID, "action_type", action.Type)

		return nil
	}
}

// DispatchAll resolves a slice of actions in order, concatenating effects.
func (d *Dispatcher) DispatchAll(actionList []*models.Action, ticket *models.TicketSnapshot, execCtx models.ExecutionContext) []models.Effect {
	effects := make([]models.Effect, 0)

	for _, action := range actionList {
		effects = append(effects, d.Dispatch(action, ticket, execCtx)...)
	}

	return effects
}

// StageNotifications resolves a stage's declared notifications for a trigger
// into intents.
func (d *Dispatcher) StageNotifications(stage *models.Stage, trigger models.NotificationTrigger, ticket *models.TicketSnapshot) []models.Effect {
	effects := make([]models.Effect, 0)

	for _, n := range stage.Notifications {
		if n.Trigger != trigger {
			continue
		}

		effects = append(effects, models.NotificationIntent{
			RecipientRole: n.RecipientRole,
			TemplateID:    n.TemplateID,
			TicketID:      ticket.ID,
		})
	}

	return effects
}
