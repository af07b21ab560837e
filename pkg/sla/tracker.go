// Package sla tracks time-in-stage against each stage's configured
// service-level clock. The tracker is a pure query; the sweeper runs it
// periodically over all open tickets.
package sla

import (
	"time"

	"github.com/stageflow/stageflow/pkg/models"
)

// Status is the SLA state of a ticket in its current stage. The ordering
// OnTrack < Warning < Breached is monotonic in elapsed time until a stage
// reset.
type Status string

const (
	StatusOnTrack  Status = "on_track"
	StatusWarning  Status = "warning"
	StatusBreached Status = "breached"

	// StatusNone marks tickets whose stage carries no SLA.
	StatusNone Status = "none"
)

// ElapsedFraction returns elapsed time in stage as a fraction of the SLA
// duration. A nil or non-positive SLA yields 0.
func ElapsedFraction(sla *models.SLAConfig, enteredAt, now time.Time) float64 {
	if sla == nil || sla.DurationHours <= 0 {
		return 0
	}

	elapsed := now.Sub(enteredAt).Hours()
	if elapsed < 0 {
		return 0
	}

	return elapsed / sla.DurationHours
}

// StatusOf maps an elapsed fraction onto the status ladder using the stage's
// warning threshold.
func StatusOf(sla *models.SLAConfig, fraction float64) Status {
	if sla == nil {
		return StatusNone
	}

	threshold := sla.WarningThresholdPercent / 100

	switch {
	case fraction >= 1.0:
		return StatusBreached
	case fraction >= threshold:
		return StatusWarning
	default:
		return StatusOnTrack
	}
}

// Check computes the status of a single ticket against its current stage.
type Check struct {
	TicketID        string    `json:"ticket_id"`
	StageID         string    `json:"stage_id"`
	Status          Status    `json:"status"`
	ElapsedFraction float64   `json:"elapsed_fraction"`
	StageEnteredAt  time.Time `json:"stage_entered_at"`
}

// Evaluate computes the SLA check for a ticket given its current stage.
func Evaluate(stage *models.Stage, ticket *models.TicketSnapshot, now time.Time) Check {
	check := Check{
		TicketID:       ticket.ID,
		StageID:        ticket.CurrentStageID,
		Status:         StatusNone,
		StageEnteredAt: ticket.StageEnteredAt,
	}

	if stage == nil || stage.SLA == nil {
		return check
	}

	check.ElapsedFraction = ElapsedFraction(stage.SLA, ticket.StageEnteredAt, now)
	check.Status = StatusOf(stage.SLA, check.ElapsedFraction)

	return check
}

// Scan evaluates a batch of tickets against their definitions. resolve maps
// a ticket to its stage; tickets whose stage cannot be resolved are skipped,
// which keeps the sweep total in the face of stale or misconfigured data.
// Tickets resting in a final stage are skipped too: a closed ticket has no
// running SLA clock even when its stage carries an SLA config.
func Scan(tickets []*models.TicketSnapshot, resolve func(*models.TicketSnapshot) *models.Stage, now time.Time) []Check {
	checks := make([]Check, 0, len(tickets))

	for _, ticket := range tickets {
		stage := resolve(ticket)
		if stage == nil || stage.IsFinal() {
			continue
		}

		checks = append(checks, Evaluate(stage, ticket, now))
	}

	return checks
}
