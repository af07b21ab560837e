package sla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/events"
	"github.com/stageflow/stageflow/pkg/metrics"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/otelhelper"
)

// DefaultSchedule runs the sweep hourly.
const DefaultSchedule = "@hourly"

// TicketSource lists the tickets a sweep iterates. Stores return every
// ticket; Scan drops the ones resting in a final stage.
type TicketSource interface {
	OpenTickets(ctx context.Context) ([]*models.TicketSnapshot, error)
}

// Sweeper periodically scans open tickets for SLA warnings and breaches and
// publishes notification trigger events. The sweep is read-only with respect
// to tickets: it never mutates a stage, so it cannot race an in-flight
// transition. Re-running a sweep re-emits the same events; the notification
// dispatcher deduplicates by (ticket_id, stage_id, threshold).
type Sweeper struct {
	tickets     TicketSource
	definitions engine.DefinitionSource
	publisher   eventbus.EventPublisher
	schedule    string
	cron        *cron.Cron
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewSweeper(
	tickets TicketSource,
	definitions engine.DefinitionSource,
	publisher eventbus.EventPublisher,
	schedule string,
	logger *slog.Logger,
) *Sweeper {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	return &Sweeper{
		tickets:     tickets,
		definitions: definitions,
		publisher:   publisher,
		schedule:    schedule,
		logger:      logger.With("module", "sla_sweeper", "schedule", schedule),
		tracer:      otel.Tracer("stageflow/sla"),
	}
}

// Start schedules the sweep and blocks until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("SLA sweeper started")

	<-ctx.Done()
	s.Stop()

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("SLA sweeper stopped")
}

// RunOnce performs a single sweep: load open tickets, evaluate each against
// its bound definition, publish warning/breach events. The sweep exists to
// publish, so a missing publisher is an error rather than a silent no-op.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if s.publisher == nil {
		return errors.New("sla sweep requires an event publisher")
	}

	ctx, span := s.tracer.Start(ctx, "SLASweep")
	defer span.End()

	started := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}()

	tickets, err := s.tickets.OpenTickets(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("listing open tickets: %w", err)
	}

	definitionCache := make(map[string]*models.WorkflowDefinition)

	resolve := func(ticket *models.TicketSnapshot) *models.Stage {
		definition, ok := definitionCache[ticket.WorkflowDefinitionID]
		if !ok {
			var err error

			definition, err = s.definitions.DefinitionByID(ctx, ticket.WorkflowDefinitionID)
			if err != nil {
				s.logger.Warn("skipping ticket with unresolvable definition",
					"ticket_id", ticket.ID,
					"workflow_definition_id", ticket.WorkflowDefinitionID,
					"error", err,
				)

				definition = nil
			}

			definitionCache[ticket.WorkflowDefinitionID] = definition
		}

		if definition == nil || definition.Definition == nil {
			return nil
		}

		return definition.Definition.StageByID(ticket.CurrentStageID)
	}

	now := time.Now().UTC()
	checks := Scan(tickets, resolve, now)

	var publishErrs error

	for _, check := range checks {
		metrics.SLAStatuses.WithLabelValues(string(check.Status)).Inc()

		if err := s.publishCheck(ctx, check, now); err != nil {
			publishErrs = errors.Join(publishErrs, err)
		}
	}

	span.SetAttributes(
		attribute.Int("stageflow.sweep.tickets", len(tickets)),
		attribute.Int("stageflow.sweep.checks", len(checks)),
	)
	s.logger.Info("sweep complete", "tickets", len(tickets), "checks", len(checks))

	return publishErrs
}

func (s *Sweeper) publishCheck(ctx context.Context, check Check, now time.Time) error {
	base := events.BaseEvent{
		Timestamp: now,
		TicketID:  check.TicketID,
	}

	switch check.Status {
	case StatusWarning:
		base.Type = events.TicketSLAWarningEvent

		return s.publisher.Publish(ctx, check.TicketID, events.TicketSLAWarning{
			BaseEvent:       base,
			StageID:         check.StageID,
			StageEnteredAt:  check.StageEnteredAt,
			ElapsedFraction: check.ElapsedFraction,
		})
	case StatusBreached:
		base.Type = events.TicketSLABreachEvent

		return s.publisher.Publish(ctx, check.TicketID, events.TicketSLABreach{
			BaseEvent:       base,
			StageID:         check.StageID,
			StageEnteredAt:  check.StageEnteredAt,
			ElapsedFraction: check.ElapsedFraction,
		})
	default:
		return nil
	}
}
