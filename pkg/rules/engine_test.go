package rules

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/actions"
	"github.com/stageflow/stageflow/pkg/models"
)

func newTestEngine() *Engine {
	return NewEngine(actions.NewDispatcher(slog.Default()), slog.Default())
}

func TestRunPriorityOrderAndChaining(t *testing.T) {
	// The lower-priority rule sets a field the higher-priority rule needs:
	// a later rule in the same pass must see earlier rules' field effects.
	body := &models.DefinitionBody{
		Rules: []*models.Rule{
			{
				ID:       "r2",
				Name:     "escalate when flagged",
				Priority: 20,
				Conditions: []*models.Condition{
					{Field: "flagged", Operator: models.OperatorEquals, Value: true},
				},
				Actions: []*models.Action{
					{ID: "a2", Type: models.ActionTypeFieldUpdate, Config: map[string]any{"field": "escalated", "value": true}},
				},
			},
			{
				ID:       "r1",
				Name:     "flag high priority",
				Priority: 10,
				Conditions: []*models.Condition{
					{Field: "priority", Operator: models.OperatorEquals, Value: "High"},
				},
				Actions: []*models.Action{
					{ID: "a1", Type: models.ActionTypeFieldUpdate, Config: map[string]any{"field": "flagged", "value": true}},
				},
			},
		},
	}

	ticket := &models.TicketSnapshot{
		ID:     "t1",
		Fields: map[string]any{"priority": "High"},
	}

	effects := newTestEngine().Run(body, ticket, models.ExecutionContext{})

	require.Len(t, effects, 2)
	assert.Equal(t, true, ticket.Fields["flagged"])
	assert.Equal(t, true, ticket.Fields["escalated"])
}

func TestRunStageChangeTerminatesPass(t *testing.T) {
	body := &models.DefinitionBody{
		Rules: []*models.Rule{
			{
				ID:       "r1",
				Name:     "auto approve low priority",
				Priority: 1,
				Conditions: []*models.Condition{
					{Field: "priority", Operator: models.OperatorEquals, Value: "Low"},
				},
				Actions: []*models.Action{
					{ID: "a1", Type: models.ActionTypeStatusChange, Config: map[string]any{"to_stage_id": "approved"}},
				},
			},
			{
				ID:       "r2",
				Name:     "never reached",
				Priority: 2,
				Actions: []*models.Action{
					{ID: "a2", Type: models.ActionTypeFieldUpdate, Config: map[string]any{"field": "touched", "value": true}},
				},
			},
		},
	}

	ticket := &models.TicketSnapshot{
		ID:             "t1",
		CurrentStageID: "pending_approval",
		Fields:         map[string]any{"priority": "Low"},
	}

	effects := newTestEngine().Run(body, ticket, models.ExecutionContext{})

	require.Len(t, effects, 1)
	assert.Equal(t, models.StageChangeRequest{ToStageID: "approved"}, effects[0])

	// The engine does not move the ticket itself and the second rule never ran.
	assert.Equal(t, "pending_approval", ticket.CurrentStageID)
	assert.NotContains(t, ticket.Fields, "touched")
}

func TestRunNoMatches(t *testing.T) {
	body := &models.DefinitionBody{
		Rules: []*models.Rule{
			{
				ID:       "r1",
				Name:     "needs vip",
				Priority: 1,
				Conditions: []*models.Condition{
					{Field: "vip", Operator: models.OperatorEquals, Value: true},
				},
				Actions: []*models.Action{
					{ID: "a1", Type: models.ActionTypeFieldUpdate, Config: map[string]any{"field": "fasttrack", "value": true}},
				},
			},
		},
	}

	ticket := &models.TicketSnapshot{ID: "t1", Fields: map[string]any{}}

	assert.Empty(t, newTestEngine().Run(body, ticket, models.ExecutionContext{}))
	assert.Empty(t, newTestEngine().Run(nil, ticket, models.ExecutionContext{}))
	assert.Empty(t, newTestEngine().Run(&models.DefinitionBody{}, ticket, models.ExecutionContext{}))
}

func TestRunDoesNotReorderInput(t *testing.T) {
	body := &models.DefinitionBody{
		Rules: []*models.Rule{
			{ID: "high", Priority: 5, Actions: []*models.Action{{ID: "a", Type: models.ActionTypeFieldUpdate, Config: map[string]any{"field": "x", "value": 1}}}},
			{ID: "low", Priority: 1, Actions: []*models.Action{{ID: "b", Type: models.ActionTypeFieldUpdate, Config: map[string]any{"field": "y", "value": 2}}}},
		},
	}

	ticket := &models.TicketSnapshot{ID: "t1", Fields: map[string]any{}}
	newTestEngine().Run(body, ticket, models.ExecutionContext{})

	assert.Equal(t, "high", body.Rules[0].ID)
	assert.Equal(t, "low", body.Rules[1].ID)
}
