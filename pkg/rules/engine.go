// Package rules runs a workflow's automation rules against a ticket
// snapshot. A pass is single-shot and order-sensitive: rules are evaluated
// in ascending priority, each matching rule's field effects are applied to
// the in-memory snapshot before the next rule is checked, and there is no
// fixed-point iteration. A stage-change effect ends the pass; the
// orchestrator owns re-triggering under the new stage.
package rules

import (
	"log/slog"
	"sort"

	"github.com/stageflow/stageflow/pkg/actions"
	"github.com/stageflow/stageflow/pkg/conditions"
	"github.com/stageflow/stageflow/pkg/models"
)

type Engine struct {
	dispatcher *actions.Dispatcher
	logger     *slog.Logger
}

func NewEngine(dispatcher *actions.Dispatcher, logger *slog.Logger) *Engine {
	return &Engine{
		dispatcher: dispatcher,
		logger:     logger.With("module", "rule_engine"),
	}
}

// Run evaluates the definition's rules against the ticket. The ticket's
// Fields map is mutated in place as field effects fire, so callers pass a
// clone when they need the original intact. The ticket's stage is never
// mutated here: a StageChangeRequest in the returned effects signals the
// orchestrator to validate and apply it.
func (e *Engine) Run(body *models.DefinitionBody, ticket *models.TicketSnapshot, execCtx models.ExecutionContext) []models.Effect {
	if body == nil || len(body.Rules) == 0 {
		return nil
	}

	ordered := make([]*models.Rule, len(body.Rules))
	copy(ordered, body.Rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	collected := make([]models.Effect, 0)

	for _, rule := range ordered {
		if !conditions.EvaluateAll(rule.Conditions, ticket.Fields) {
			continue
		}

		e.logger.Debug("rule matched",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
			"ticket_id", ticket.ID,
			"stage_id", ticket.CurrentStageID,
		)

		effects := e.dispatcher.DispatchAll(rule.Actions, ticket, execCtx)
		collected = append(collected, effects...)

		stageChanged := false

		for _, effect := range effects {
			switch eff := effect.(type) {
			case models.FieldUpdate:
				if ticket.Fields == nil {
					ticket.Fields = make(map[string]any)
				}

				ticket.Fields[eff.Field] = eff.Value
			case models.StageChangeRequest:
				stageChanged = true
			}
		}

		// First stage-changing match wins; the pass ends and the
		// orchestrator re-runs rules under the new stage.
		if stageChanged {
			return collected
		}
	}

	return collected
}
