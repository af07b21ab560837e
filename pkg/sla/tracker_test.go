package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/models"
)

func TestElapsedFraction(t *testing.T) {
	sla := &models.SLAConfig{DurationHours: 24, WarningThresholdPercent: 80}
	entered := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 0.5, ElapsedFraction(sla, entered, entered.Add(12*time.Hour)), 1e-9)
	assert.InDelta(t, 0, ElapsedFraction(sla, entered, entered), 1e-9)
	assert.InDelta(t, 0, ElapsedFraction(sla, entered, entered.Add(-time.Hour)), 1e-9)
	assert.InDelta(t, 0, ElapsedFraction(nil, entered, entered.Add(time.Hour)), 1e-9)
	assert.InDelta(t, 0, ElapsedFraction(&models.SLAConfig{}, entered, entered.Add(time.Hour)), 1e-9)
}

func TestStatusOf(t *testing.T) {
	sla := &models.SLAConfig{DurationHours: 24, WarningThresholdPercent: 80}

	assert.Equal(t, StatusOnTrack, StatusOf(sla, 0))
	assert.Equal(t, StatusOnTrack, StatusOf(sla, 0.79))
	assert.Equal(t, StatusWarning, StatusOf(sla, 0.8))
	assert.Equal(t, StatusWarning, StatusOf(sla, 0.99))
	assert.Equal(t, StatusBreached, StatusOf(sla, 1.0))
	assert.Equal(t, StatusBreached, StatusOf(sla, 3.5))
	assert.Equal(t, StatusNone, StatusOf(nil, 0.5))
}

func TestStatusMonotonic(t *testing.T) {
	sla := &models.SLAConfig{DurationHours: 10, WarningThresholdPercent: 50}

	rank := map[Status]int{StatusOnTrack: 0, StatusWarning: 1, StatusBreached: 2}

	previous := StatusOnTrack
	for fraction := 0.0; fraction <= 2.0; fraction += 0.01 {
		current := StatusOf(sla, fraction)
		assert.GreaterOrEqual(t, rank[current], rank[previous], "status regressed at fraction %f", fraction)
		previous = current
	}
}

func TestEvaluateScenario(t *testing.T) {
	// A stage with a 24h SLA and an 80% warning threshold: a ticket that
	// entered at T reads Warning at T+20h and Breached at T+25h.
	stage := &models.Stage{
		ID:  "pending_approval",
		SLA: &models.SLAConfig{DurationHours: 24, WarningThresholdPercent: 80},
	}

	entered := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := &models.TicketSnapshot{
		ID:             "t1",
		CurrentStageID: "pending_approval",
		StageEnteredAt: entered,
	}

	check := Evaluate(stage, ticket, entered.Add(20*time.Hour))
	assert.Equal(t, StatusWarning, check.Status)

	check = Evaluate(stage, ticket, entered.Add(25*time.Hour))
	assert.Equal(t, StatusBreached, check.Status)

	check = Evaluate(stage, ticket, entered.Add(2*time.Hour))
	assert.Equal(t, StatusOnTrack, check.Status)
}

func TestEvaluateWithoutSLA(t *testing.T) {
	ticket := &models.TicketSnapshot{ID: "t1", CurrentStageID: "open"}

	check := Evaluate(&models.Stage{ID: "open"}, ticket, time.Now())
	assert.Equal(t, StatusNone, check.Status)

	check = Evaluate(nil, ticket, time.Now())
	assert.Equal(t, StatusNone, check.Status)
}

func TestScan(t *testing.T) {
	entered := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	now := entered.Add(20 * time.Hour)

	stages := map[string]*models.Stage{
		"watched": {ID: "watched", SLA: &models.SLAConfig{DurationHours: 24, WarningThresholdPercent: 80}},
		"quiet":   {ID: "quiet"},
		"closed":  {ID: "closed", Type: models.StageTypeFinal, SLA: &models.SLAConfig{DurationHours: 1, WarningThresholdPercent: 80}},
	}

	tickets := []*models.TicketSnapshot{
		{ID: "t1", CurrentStageID: "watched", StageEnteredAt: entered},
		{ID: "t2", CurrentStageID: "quiet", StageEnteredAt: entered},
		{ID: "t3", CurrentStageID: "orphaned", StageEnteredAt: entered},
		{ID: "t4", CurrentStageID: "closed", StageEnteredAt: entered},
	}

	checks := Scan(tickets, func(ticket *models.TicketSnapshot) *models.Stage {
		return stages[ticket.CurrentStageID]
	}, now)

	require.Len(t, checks, 2)
	assert.Equal(t, StatusWarning, checks[0].Status)
	assert.Equal(t, "t1", checks[0].TicketID)
	assert.Equal(t, StatusNone, checks[1].Status)
}
