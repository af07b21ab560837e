package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/services"
)

// Actor identity headers. Authentication happens upstream; the gateway
// injects the resolved identity and role set.
const (
	HeaderActorID    = "X-Actor-Id"
	HeaderActorRoles = "X-Actor-Roles"
)

type APIHandlers struct {
	definitionService *services.Definitions
	ticketService     *services.Tickets
	validator         *validator.Validate
}

func NewAPIHandlers(
	definitionService *services.Definitions,
	ticketService *services.Tickets,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		definitionService: definitionService,
		ticketService:     ticketService,
		validator:         validator,
	}
}

// actor resolves the requesting identity from the gateway headers.
func actor(c fiber.Ctx) models.Actor {
	a := models.Actor{ID: c.Get(HeaderActorID)}

	if raw := c.Get(HeaderActorRoles); raw != "" {
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				a.Roles = append(a.Roles, role)
			}
		}
	}

	return a
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.definitionService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetDefinitions(c fiber.Ctx) error {
	workflowType := models.WorkflowType(c.Query("workflow_type"))
	if workflowType == "" {
		return badRequest(c, "workflow_type query parameter is required")
	}

	definitions, err := h.definitionService.ListActive(c.Context(), workflowType)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"definitions": definitions})
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	definition, err := h.definitionService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	var req CreateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	definition := &models.WorkflowDefinition{
		WorkflowType: req.WorkflowType,
		Name:         req.Name,
		Description:  req.Description,
		IsDefault:    req.IsDefault,
		Version:      req.Version,
		Definition:   req.Definition,
	}

	result, err := h.definitionService.Create(c.Context(), definition, actor(c).ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(DefinitionResponse{
		Definition: result.Definition,
		Warnings:   result.Warnings,
	})
}

func (h *APIHandlers) UpdateDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	var req UpdateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated := &models.WorkflowDefinition{
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		Version:     req.Version,
		Definition:  req.Definition,
	}

	result, err := h.definitionService.Update(c.Context(), id, updated, actor(c).ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DefinitionResponse{
		Definition: result.Definition,
		Warnings:   result.Warnings,
	})
}

func (h *APIHandlers) DeactivateDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	if err := h.definitionService.Deactivate(c.Context(), id, actor(c).ID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateTicket(c fiber.Ctx) error {
	var req CreateTicketRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.ticketService.Create(c.Context(), services.CreateTicketRequest{
		WorkflowType: req.WorkflowType,
		DefinitionID: req.DefinitionID,
		Fields:       req.Fields,
	}, actor(c))
	if err != nil {
		if services.IsValidationError(err) || services.IsConflictError(err) {
			return handleServiceError(c, err)
		}

		return handleTransitionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TicketResponse{
		Ticket:  result.Ticket,
		Effects: WrapEffects(result.Effects),
	})
}

func (h *APIHandlers) GetTicket(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Ticket ID is required")
	}

	ticket, err := h.ticketService.Get(c.Context(), id)
	if err != nil {
		if persistence.IsTicketNotFound(err) {
			return notFound(c, "ticket not found")
		}

		return internalError(c, err)
	}

	return c.JSON(ticket)
}

func (h *APIHandlers) ApplyTransition(c fiber.Ctx) error {
	id := c.Params("id")
	transitionID := c.Params("transitionId")

	if id == "" || transitionID == "" {
		return badRequest(c, "Ticket ID and transition ID are required")
	}

	var req ApplyTransitionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	result, err := h.ticketService.ApplyTransition(c.Context(), id, transitionID,
		actor(c), models.TransitionMetadata{Comment: req.Comment})
	if err != nil {
		return handleTransitionError(c, err)
	}

	return c.JSON(TicketResponse{
		Ticket:  result.Ticket,
		Effects: WrapEffects(result.Effects),
	})
}

// ValidateTransition is the dry-run variant: it reports whether the
// transition would be accepted without applying anything.
func (h *APIHandlers) ValidateTransition(c fiber.Ctx) error {
	id := c.Params("id")
	transitionID := c.Params("transitionId")

	if id == "" || transitionID == "" {
		return badRequest(c, "Ticket ID and transition ID are required")
	}

	var req ApplyTransitionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	err := h.ticketService.ValidateTransition(c.Context(), id, transitionID,
		actor(c), models.TransitionMetadata{Comment: req.Comment})
	if err != nil {
		return handleTransitionError(c, err)
	}

	return c.JSON(fiber.Map{"valid": true, "transition_id": transitionID})
}

func (h *APIHandlers) GetAvailableTransitions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Ticket ID is required")
	}

	transitions, err := h.ticketService.AvailableTransitions(c.Context(), id, actor(c))
	if err != nil {
		return handleTransitionError(c, err)
	}

	return c.JSON(fiber.Map{"transitions": transitions})
}

func (h *APIHandlers) GetTicketSLA(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Ticket ID is required")
	}

	check, err := h.ticketService.SLAStatus(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(check)
}

func (h *APIHandlers) RecordApproval(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Ticket ID is required")
	}

	var req RecordApprovalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	approval := &persistence.Approval{
		TicketID:   id,
		Role:       req.Role,
		ApproverID: actor(c).ID,
		Status:     req.Status,
	}

	if err := h.ticketService.RecordApproval(c.Context(), approval); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(approval)
}
