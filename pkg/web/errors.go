package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service and store errors onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "workflow definition not found")

	case errors.Is(err, persistence.ErrNoDefaultDefinition):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("no_default_definition").
			WithDetail("no active default workflow definition for type")

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case persistence.IsTicketNotFound(err):
		return notFound(c, "ticket not found")

	default:
		return internalError(c, err)
	}
}

// handleTransitionError maps engine rejections onto problem responses. A
// rejected transition is a well-formed request the workflow refuses, so most
// rejections are 422; authorization and concurrency get their own statuses.
func handleTransitionError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, engine.ErrUnauthorized):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("unauthorized_transition").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case errors.Is(err, engine.ErrConcurrentModification):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("concurrent_modification").
			WithDetail("ticket was modified concurrently, retry with fresh state")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, engine.ErrWorkflowNotFound):
		return notFound(c, "workflow definition not found")

	case engine.IsUserError(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType(rejectionType(err)).
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case persistence.IsTicketNotFound(err):
		return notFound(c, "ticket not found")

	default:
		return internalError(c, err)
	}
}

func rejectionType(err error) string {
	switch {
	case errors.Is(err, engine.ErrNoSuchTransition):
		return "no_such_transition"
	case errors.Is(err, engine.ErrTerminalStage):
		return "terminal_stage"
	case errors.Is(err, engine.ErrConditionsNotMet):
		return "conditions_not_met"
	case errors.Is(err, engine.ErrCommentRequired):
		return "comment_required"
	case errors.Is(err, engine.ErrApprovalPending):
		return "approval_pending"
	default:
		return "transition_rejected"
	}
}
