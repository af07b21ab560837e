package sla

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/models"
)

type staticTicketSource struct {
	tickets []*models.TicketSnapshot
}

func (s *staticTicketSource) OpenTickets(_ context.Context) ([]*models.TicketSnapshot, error) {
	return s.tickets, nil
}

type staticDefinitionSource struct {
	definitions map[string]*models.WorkflowDefinition
}

func (s *staticDefinitionSource) DefinitionByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	return s.definitions[id], nil
}

type capturingPublisher struct {
	published []eventbus.Event
}

func (c *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	c.published = append(c.published, event)

	return nil
}

func slaDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:           "wf-1",
		WorkflowType: models.WorkflowTypeIncident,
		IsActive:     true,
		Definition: &models.DefinitionBody{
			InitialStatus: "pending_approval",
			Stages: []*models.Stage{
				{
					ID:   "pending_approval",
					Name: "Pending Approval",
					Type: models.StageTypeInitial,
					SLA:  &models.SLAConfig{DurationHours: 24, WarningThresholdPercent: 80},
				},
				{ID: "approved", Name: "Approved", Type: models.StageTypeFinal},
			},
		},
	}
}

func TestRunOncePublishesWarningsAndBreaches(t *testing.T) {
	now := time.Now().UTC()

	source := &staticTicketSource{tickets: []*models.TicketSnapshot{
		{ID: "warn", WorkflowDefinitionID: "wf-1", CurrentStageID: "pending_approval", StageEnteredAt: now.Add(-20 * time.Hour)},
		{ID: "breach", WorkflowDefinitionID: "wf-1", CurrentStageID: "pending_approval", StageEnteredAt: now.Add(-25 * time.Hour)},
		{ID: "fresh", WorkflowDefinitionID: "wf-1", CurrentStageID: "pending_approval", StageEnteredAt: now.Add(-time.Hour)},
	}}

	definitions := &staticDefinitionSource{definitions: map[string]*models.WorkflowDefinition{
		"wf-1": slaDefinition(),
	}}
	publisher := &capturingPublisher{}

	sweeper := NewSweeper(source, definitions, publisher, "", slog.Default())
	require.NoError(t, sweeper.RunOnce(t.Context()))

	require.Len(t, publisher.published, 2)

	warning, ok := publisher.published[0].(events.TicketSLAWarning)
	require.True(t, ok)
	assert.Equal(t, "warn", warning.TicketID)
	assert.Equal(t, "pending_approval", warning.StageID)
	assert.Greater(t, warning.ElapsedFraction, 0.8)

	breach, ok := publisher.published[1].(events.TicketSLABreach)
	require.True(t, ok)
	assert.Equal(t, "breach", breach.TicketID)
	assert.Greater(t, breach.ElapsedFraction, 1.0)
}

func TestRunOnceSkipsUnresolvableDefinitions(t *testing.T) {
	now := time.Now().UTC()

	source := &staticTicketSource{tickets: []*models.TicketSnapshot{
		{ID: "orphan", WorkflowDefinitionID: "missing", CurrentStageID: "pending_approval", StageEnteredAt: now.Add(-30 * time.Hour)},
	}}
	publisher := &capturingPublisher{}

	sweeper := NewSweeper(source, &staticDefinitionSource{definitions: map[string]*models.WorkflowDefinition{}}, publisher, "", slog.Default())
	require.NoError(t, sweeper.RunOnce(t.Context()))
	assert.Empty(t, publisher.published)
}

func TestRunOnceSkipsFinalStageTickets(t *testing.T) {
	now := time.Now().UTC()

	definition := slaDefinition()
	definition.Definition.StageByID("approved").SLA = &models.SLAConfig{DurationHours: 1, WarningThresholdPercent: 80}

	source := &staticTicketSource{tickets: []*models.TicketSnapshot{
		{ID: "closed", WorkflowDefinitionID: "wf-1", CurrentStageID: "approved", StageEnteredAt: now.Add(-30 * time.Hour)},
	}}
	publisher := &capturingPublisher{}

	sweeper := NewSweeper(source, &staticDefinitionSource{definitions: map[string]*models.WorkflowDefinition{
		"wf-1": definition,
	}}, publisher, "", slog.Default())
	require.NoError(t, sweeper.RunOnce(t.Context()))
	assert.Empty(t, publisher.published)
}

func TestRunOnceRequiresPublisher(t *testing.T) {
	source := &staticTicketSource{}
	definitions := &staticDefinitionSource{definitions: map[string]*models.WorkflowDefinition{}}

	sweeper := NewSweeper(source, definitions, nil, "", slog.Default())
	require.Error(t, sweeper.RunOnce(t.Context()))
}

func TestRunOnceIsIdempotent(t *testing.T) {
	now := time.Now().UTC()

	source := &staticTicketSource{tickets: []*models.TicketSnapshot{
		{ID: "warn", WorkflowDefinitionID: "wf-1", CurrentStageID: "pending_approval", StageEnteredAt: now.Add(-20 * time.Hour)},
	}}
	definitions := &staticDefinitionSource{definitions: map[string]*models.WorkflowDefinition{
		"wf-1": slaDefinition(),
	}}
	publisher := &capturingPublisher{}

	sweeper := NewSweeper(source, definitions, publisher, "", slog.Default())
	require.NoError(t, sweeper.RunOnce(t.Context()))
	require.NoError(t, sweeper.RunOnce(t.Context()))

	// Re-running emits the same warning again; deduplication is the
	// dispatcher's job.
	assert.Len(t, publisher.published, 2)
}
