package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stageflow/stageflow/pkg/actions"
	"github.com/stageflow/stageflow/pkg/metrics"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/otelhelper"
	"github.com/stageflow/stageflow/pkg/rules"
)

// maxAutoTransitionDepth bounds rule-driven stage changes chained within one
// apply. A well-authored workflow rarely chains more than two or three.
const maxAutoTransitionDepth = 10

// DefinitionSource resolves a ticket's bound workflow definition.
type DefinitionSource interface {
	DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
}

// Orchestrator is the engine's entry point. It composes the validator, the
// action dispatcher and the rule engine into the full transition algorithm.
// All computation is synchronous and side-effect-free until the caller
// applies the returned effects; concurrent calls for distinct tickets need
// no coordination, and concurrent calls for the same ticket are resolved by
// the store's optimistic-concurrency check on write-back.
type Orchestrator struct {
	definitions DefinitionSource
	validator   *Validator
	dispatcher  *actions.Dispatcher
	rules       *rules.Engine
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewOrchestrator(
	definitions DefinitionSource,
	validator *Validator,
	dispatcher *actions.Dispatcher,
	ruleEngine *rules.Engine,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		definitions: definitions,
		validator:   validator,
		dispatcher:  dispatcher,
		rules:       ruleEngine,
		logger:      logger.With("module", "workflow_orchestrator"),
		tracer:      otel.Tracer("stageflow/engine"),
	}
}

// ApplyTransition validates and applies a transition to the ticket,
// returning the accumulated effect list. On success the ticket snapshot is
// mutated (stage, timestamp, rule field updates); on any error it is left
// untouched, so there is no committed-but-incomplete state.
func (o *Orchestrator) ApplyTransition(
	ctx context.Context,
	ticket *models.TicketSnapshot,
	transitionID string,
	actor models.Actor,
	metadata models.TransitionMetadata,
) ([]models.Effect, error) {
	ctx, span := o.tracer.Start(ctx, "ApplyTransition", trace.WithAttributes(
		attribute.String(otelhelper.TicketIDKey, ticket.ID),
		attribute.String(otelhelper.TransitionIDKey, transitionID),
		attribute.String(otelhelper.StageIDKey, ticket.CurrentStageID),
	))
	defer span.End()

	definition, err := o.resolveDefinition(ctx, ticket)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, NewTransitionError("ApplyTransition", ticket.ID, transitionID, err)
	}

	body := definition.Definition
	execCtx := models.ExecutionContext{
		Actor:        actor,
		TransitionID: transitionID,
		Metadata:     metadata,
		Now:          time.Now().UTC(),
	}

	transition, err := o.validator.Validate(ctx, body, ticket, transitionID, actor, metadata)
	if err != nil {
		metrics.TransitionsRejected.WithLabelValues(rejectionReason(err)).Inc()
		otelhelper.SetError(span, err)

		return nil, NewTransitionError("ApplyTransition", ticket.ID, transitionID, err)
	}

	// Work on a clone so a mid-flight failure leaves the caller's snapshot
	// unchanged.
	working := ticket.Clone()

	effects, depth, err := o.moveTo(ctx, body, working, transition.ToStageID, execCtx, 0)
	if err != nil {
		metrics.TransitionsRejected.WithLabelValues(rejectionReason(err)).Inc()
		otelhelper.SetError(span, err)

		return nil, NewTransitionError("ApplyTransition", ticket.ID, transitionID, err)
	}

	*ticket = *working

	metrics.TransitionsApplied.WithLabelValues(string(ticket.WorkflowType)).Inc()
	metrics.AutoTransitionDepth.Observe(float64(depth))

	o.logger.Info("transition applied",
		"ticket_id", ticket.ID,
		"transition_id", transitionID,
		"stage_id", ticket.CurrentStageID,
		"effects", len(effects),
		"auto_depth", depth,
	)

	return effects, nil
}

// Initialize places a newly created ticket into the definition's initial
// stage and runs on_enter actions and the first rule pass, mirroring what a
// human-driven transition would do. Scenario: a ticket created with fields
// already matching an auto-advance rule moves on immediately.
func (o *Orchestrator) Initialize(ctx context.Context, ticket *models.TicketSnapshot, actor models.Actor) ([]models.Effect, error) {
	ctx, span := o.tracer.Start(ctx, "Initialize", trace.WithAttributes(
		attribute.String(otelhelper.TicketIDKey, ticket.ID),
	))
	defer span.End()

	definition, err := o.resolveDefinition(ctx, ticket)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, NewTransitionError("Initialize", ticket.ID, "", err)
	}

	body := definition.Definition
	if body.InitialStage() == nil {
		err = fmt.Errorf("%w: initial status %q not in stages", ErrConfiguration, body.InitialStatus)
		otelhelper.SetError(span, err)

		return nil, NewTransitionError("Initialize", ticket.ID, "", err)
	}

	execCtx := models.ExecutionContext{Actor: actor, Now: time.Now().UTC()}
	working := ticket.Clone()

	effects, _, err := o.enterStage(ctx, body, working, body.InitialStatus, execCtx, 0)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, NewTransitionError("Initialize", ticket.ID, "", err)
	}

	*ticket = *working

	return effects, nil
}

// ValidateOnly runs the validation pass without applying anything. Exposed
// for UI affordance: show or hide a transition button.
func (o *Orchestrator) ValidateOnly(
	ctx context.Context,
	ticket *models.TicketSnapshot,
	transitionID string,
	actor models.Actor,
	metadata models.TransitionMetadata,
) error {
	definition, err := o.resolveDefinition(ctx, ticket)
	if err != nil {
		return NewTransitionError("ValidateOnly", ticket.ID, transitionID, err)
	}

	_, err = o.validator.Validate(ctx, definition.Definition, ticket, transitionID, actor, metadata)
	if err != nil {
		return NewTransitionError("ValidateOnly", ticket.ID, transitionID, err)
	}

	return nil
}

// AvailableTransitions lists the transitions the actor could take from the
// ticket's current stage.
func (o *Orchestrator) AvailableTransitions(ctx context.Context, ticket *models.TicketSnapshot, actor models.Actor) ([]*models.Transition, error) {
	definition, err := o.resolveDefinition(ctx, ticket)
	if err != nil {
		return nil, NewTransitionError("AvailableTransitions", ticket.ID, "", err)
	}

	return o.validator.AvailableTransitions(ctx, definition.Definition, ticket, actor), nil
}

func (o *Orchestrator) resolveDefinition(ctx context.Context, ticket *models.TicketSnapshot) (*models.WorkflowDefinition, error) {
	definition, err := o.definitions.DefinitionByID(ctx, ticket.WorkflowDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkflowNotFound, err)
	}

	if definition == nil || !definition.IsActive || definition.Definition == nil {
		return nil, ErrWorkflowNotFound
	}

	return definition, nil
}

// moveTo runs on_exit of the current stage, moves the working snapshot to
// the target stage, and delegates to enterStage. depth counts rule-driven
// hops already taken.
func (o *Orchestrator) moveTo(
	ctx context.Context,
	body *models.DefinitionBody,
	working *models.TicketSnapshot,
	toStageID string,
	execCtx models.ExecutionContext,
	depth int,
) ([]models.Effect, int, error) {
	target := body.StageByID(toStageID)
	if target == nil {
		return nil, depth, fmt.Errorf("%w: transition targets unknown stage %q", ErrConfiguration, toStageID)
	}

	effects := make([]models.Effect, 0)

	if current := body.StageByID(working.CurrentStageID); current != nil {
		exitEffects := o.dispatcher.DispatchAll(current.ActionsFor(models.TriggerOnExit), working, execCtx)
		o.applyFieldEffects(working, exitEffects)
		effects = append(effects, exitEffects...)
		effects = append(effects, o.dispatcher.StageNotifications(current, models.NotifyOnExit, working)...)
	}

	enterEffects, finalDepth, err := o.enterStage(ctx, body, working, toStageID, execCtx, depth)
	if err != nil {
		return nil, finalDepth, err
	}

	return append(effects, enterEffects...), finalDepth, nil
}

// enterStage mutates the working snapshot into the stage, runs on_enter
// actions and the rule pass, and follows a rule-requested stage change by
// recursing into moveTo, bounded by maxAutoTransitionDepth.
func (o *Orchestrator) enterStage(
	ctx context.Context,
	body *models.DefinitionBody,
	working *models.TicketSnapshot,
	stageID string,
	execCtx models.ExecutionContext,
	depth int,
) ([]models.Effect, int, error) {
	stage := body.StageByID(stageID)
	if stage == nil {
		return nil, depth, fmt.Errorf("%w: stage %q not in definition", ErrConfiguration, stageID)
	}

	working.CurrentStageID = stageID
	working.StageEnteredAt = execCtx.Now

	effects := make([]models.Effect, 0)
	effects = append(effects, models.StageChangeRequest{ToStageID: stageID})

	enterEffects := o.dispatcher.DispatchAll(stage.ActionsFor(models.TriggerOnEnter), working, execCtx)
	o.applyFieldEffects(working, enterEffects)
	effects = append(effects, enterEffects...)
	effects = append(effects, o.dispatcher.StageNotifications(stage, models.NotifyOnEnter, working)...)

	// An on_enter status_change is followed the same way a rule-requested
	// one is.
	if next := firstStageChange(enterEffects); next != "" && next != stageID {
		return o.followStageChange(ctx, body, working, next, effects, execCtx, depth)
	}

	ruleEffects := o.rules.Run(body, working, execCtx)
	effects = append(effects, ruleEffects...)

	if next := firstStageChange(ruleEffects); next != "" && next != stageID {
		return o.followStageChange(ctx, body, working, next, effects, execCtx, depth)
	}

	return effects, depth, nil
}

func (o *Orchestrator) followStageChange(
	ctx context.Context,
	body *models.DefinitionBody,
	working *models.TicketSnapshot,
	next string,
	collected []models.Effect,
	execCtx models.ExecutionContext,
	depth int,
) ([]models.Effect, int, error) {
	if depth+1 > maxAutoTransitionDepth {
		o.logger.Error("auto-transition recursion bound exceeded",
			"ticket_id", working.ID,
			"stage_id", working.CurrentStageID,
			"next_stage_id", next,
		)

		return nil, depth, ErrAutoTransitionLoop
	}

	effects, finalDepth, err := o.moveTo(ctx, body, working, next, execCtx, depth+1)
	if err != nil {
		return nil, finalDepth, err
	}

	return append(collected, effects...), finalDepth, nil
}

// applyFieldEffects folds field updates into the working snapshot so later
// actions and rules in the same application observe them.
func (o *Orchestrator) applyFieldEffects(working *models.TicketSnapshot, effects []models.Effect) {
	for _, effect := range effects {
		if update, ok := effect.(models.FieldUpdate); ok {
			if working.Fields == nil {
				working.Fields = make(map[string]any)
			}

			working.Fields[update.Field] = update.Value
		}
	}
}

func firstStageChange(effects []models.Effect) string {
	for _, effect := range effects {
		if change, ok := effect.(models.StageChangeRequest); ok {
			return change.ToStageID
		}
	}

	return ""
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNoSuchTransition):
		return "no_such_transition"
	case errors.Is(err, ErrTerminalStage):
		return "terminal_stage"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrConditionsNotMet):
		return "conditions_not_met"
	case errors.Is(err, ErrCommentRequired):
		return "comment_required"
	case errors.Is(err, ErrApprovalPending):
		return "approval_pending"
	case errors.Is(err, ErrAutoTransitionLoop):
		return "auto_transition_loop"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "other"
	}
}
