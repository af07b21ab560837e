package actions

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/models"
)

func testTicket() *models.TicketSnapshot {
	return &models.TicketSnapshot{
		ID:             "ticket-1",
		CurrentStageID: "open",
		Fields:         map[string]any{"priority": "Low"},
	}
}

func TestDispatchStatusChange(t *testing.T) {
	d := NewDispatcher(slog.Default())

	effects := d.Dispatch(&models.Action{
		ID:     "a1",
		Type:   models.ActionTypeStatusChange,
		Config: map[string]any{"to_stage_id": "approved"},
	}, testTicket(), models.ExecutionContext{})

	require.Len(t, effects, 1)
	assert.Equal(t, models.StageChangeRequest{ToStageID: "approved"}, effects[0])
}

func TestDispatchStatusChangeMissingTarget(t *testing.T) {
	d := NewDispatcher(slog.Default())

	effects := d.Dispatch(&models.Action{
		ID:   "a1",
		Type: models.ActionTypeStatusChange,
	}, testTicket(), models.ExecutionContext{})

	assert.Empty(t, effects)
}

func TestDispatchFieldUpdate(t *testing.T) {
	d := NewDispatcher(slog.Default())

	effects := d.Dispatch(&models.Action{
		ID:     "a2",
		Type:   models.ActionTypeFieldUpdate,
		Config: map[string]any{"field": "priority", "value": "High"},
	}, testTicket(), models.ExecutionContext{})

	require.Len(t, effects, 1)
	assert.Equal(t, models.FieldUpdate{Field: "priority", Value: "High"}, effects[0])
}

func TestDispatchAssignment(t *testing.T) {
	d := NewDispatcher(slog.Default())

	effects := d.Dispatch(&models.Action{
		ID:     "a3",
		Type:   models.ActionTypeAssignment,
		Config: map[string]any{"assignee": "agent-7"},
	}, testTicket(), models.ExecutionContext{})

	require.Len(t, effects, 1)
	assert.Equal(t, models.FieldUpdate{Field: "assignee", Value: "agent-7"}, effects[0])
}

func TestDispatchNotification(t *testing.T) {
	d := NewDispatcher(slog.Default())

	effects := d.Dispatch(&models.Action{
		ID:     "a4",
		Type:   models.ActionTypeNotification,
		Config: map[string]any{"recipient_role": "manager", "template_id": "tpl-escalation"},
	}, testTicket(), models.ExecutionContext{})

	require.Len(t, effects, 1)
	assert.Equal(t, models.NotificationIntent{
		RecipientRole: "manager",
		TemplateID:    "tpl-escalation",
		TicketID:      "ticket-1",
	}, effects[0])
}

func TestDispatchIntegration(t *testing.T) {
	d := NewDispatcher(slog.Default())

	config := map[string]any{"endpoint": "https://example.test/hook", "method": "POST"}
	effects := d.Dispatch(&models.Action{
		ID:     "a5",
		Type:   models.ActionTypeIntegration,
		Config: config,
	}, testTicket(), models.ExecutionContext{})

	require.Len(t, effects, 1)
	assert.Equal(t, models.IntegrationCallIntent{TicketID: "ticket-1", Config: config}, effects[0])
}

func TestDispatchUnknownType(t *testing.T) {
	d := NewDispatcher(slog.Default())

	effects := d.Dispatch(&models.Action{ID: "a6", Type: "teleport"}, testTicket(), models.ExecutionContext{})
	assert.Empty(t, effects)

	assert.Empty(t, d.Dispatch(nil, testTicket(), models.ExecutionContext{}))
}

func TestDispatchAll(t *testing.T) {
	d := NewDispatcher(slog.Default())

	effects := d.DispatchAll([]*models.Action{
		{ID: "a1", Type: models.ActionTypeFieldUpdate, Config: map[string]any{"field": "impact", "value": 2}},
		{ID: "a2", Type: models.ActionTypeStatusChange, Config: map[string]any{"to_stage_id": "closed"}},
		{ID: "a3", Type: "bogus"},
	}, testTicket(), models.ExecutionContext{})

	require.Len(t, effects, 2)
	assert.Equal(t, models.EffectFieldUpdate, effects[0].EffectType())
	assert.Equal(t, models.EffectStageChange, effects[1].EffectType())
}

func TestStageNotifications(t *testing.T) {
	d := NewDispatcher(slog.Default())

	stage := &models.Stage{
		ID: "open",
		Notifications: []*models.Notification{
			{RecipientRole: "agent", Trigger: models.NotifyOnEnter, TemplateID: "tpl-assigned"},
			{RecipientRole: "manager", Trigger: models.NotifySLABreach, TemplateID: "tpl-breach"},
		},
	}

	effects := d.StageNotifications(stage, models.NotifyOnEnter, testTicket())
	require.Len(t, effects, 1)
	assert.Equal(t, models.NotificationIntent{
		RecipientRole: "agent",
		TemplateID:    "tpl-assigned",
		TicketID:      "ticket-1",
	}, effects[0])

	assert.Empty(t, d.StageNotifications(stage, models.NotifyOnExit, testTicket()))
}
