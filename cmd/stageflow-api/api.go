// Package main provides the Stageflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/stageflow/stageflow/pkg/actions"
	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/rules"
	"github.com/stageflow/stageflow/pkg/services"
	"github.com/stageflow/stageflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	dispatcher := actions.NewDispatcher(a.logger)
	orchestrator := engine.NewOrchestrator(
		a.persistence.DefinitionRepository(),
		engine.NewValidator(a.persistence.ApprovalRepository()),
		dispatcher,
		rules.NewEngine(dispatcher, a.logger),
		a.logger,
	)

	var publisher eventbus.EventPublisher
	if a.eventBus != nil {
		publisher = a.eventBus
	}

	definitionService := services.NewDefinitions(a.persistence)
	ticketService := services.NewTickets(a.persistence, orchestrator, publisher, a.logger)

	handlers := web.NewAPIHandlers(definitionService, ticketService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Stageflow API")
	})

	d := app.Group("/definitions")
	d.Get("/", handlers.GetDefinitions)
	d.Post("/", handlers.CreateDefinition)
	d.Get("/:id", handlers.GetDefinition)
	d.Patch("/:id", handlers.UpdateDefinition)
	d.Delete("/:id", handlers.DeactivateDefinition)

	tk := app.Group("/tickets")
	tk.Post("/", handlers.CreateTicket)
	tk.Get("/:id", handlers.GetTicket)
	tk.Get("/:id/transitions", handlers.GetAvailableTransitions)
	tk.Post("/:id/transitions/:transitionId", handlers.ApplyTransition)
	tk.Post("/:id/transitions/:transitionId/validate", handlers.ValidateTransition)
	tk.Get("/:id/sla", handlers.GetTicketSLA)
	tk.Post("/:id/approvals", handlers.RecordApproval)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
