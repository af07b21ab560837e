package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/actions"
	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence/file"
	"github.com/stageflow/stageflow/pkg/rules"
	"github.com/stageflow/stageflow/pkg/services"
	"github.com/stageflow/stageflow/pkg/web"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.Default()
	dispatcher := actions.NewDispatcher(logger)
	orchestrator := engine.NewOrchestrator(
		store.DefinitionRepository(),
		engine.NewValidator(store.ApprovalRepository()),
		dispatcher,
		rules.NewEngine(dispatcher, logger),
		logger,
	)

	handlers := web.NewAPIHandlers(
		services.NewDefinitions(store),
		services.NewTickets(store, orchestrator, nil, logger),
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()

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

func definitionBody() *models.DefinitionBody {
	return &models.DefinitionBody{
		InitialStatus: "open",
		Stages: []*models.Stage{
			{ID: "open", Name: "Open", Type: models.StageTypeInitial,
				SLA: &models.SLAConfig{DurationHours: 24, WarningThresholdPercent: 80}},
			{ID: "resolved", Name: "Resolved", Type: models.StageTypeIntermediate},
			{ID: "closed", Name: "Closed", Type: models.StageTypeFinal},
		},
		Transitions: []*models.Transition{
			{ID: "resolve", FromStageID: "open", ToStageID: "resolved", RequiredRoles: []string{"agent"}},
			{ID: "close", FromStageID: "resolved", ToStageID: "closed", RequiresComment: true},
		},
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body []byte

	if payload != nil {
		if str, ok := payload.(string); ok {
			body = []byte(str)
		} else {
			var err error
			body, err = json.Marshal(payload)
			require.NoError(t, err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(raw, &out))

	return out
}

func createDefinition(t *testing.T, app *fiber.App, req web.CreateDefinitionRequest) web.DefinitionResponse {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/definitions/", req,
		map[string]string{web.HeaderActorID: "author"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decode[web.DefinitionResponse](t, resp)
}

func TestCreateDefinitionHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateDefinitionRequest{
				WorkflowType: models.WorkflowTypeIncident,
				Name:         "Standard Incident",
				IsDefault:    true,
				Definition:   definitionBody(),
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "validation error - missing name",
			requestBody: web.CreateDefinitionRequest{
				WorkflowType: models.WorkflowTypeIncident,
				Definition:   definitionBody(),
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - unknown workflow type",
			requestBody: web.CreateDefinitionRequest{
				WorkflowType: "payroll",
				Name:         "Standard Incident",
				Definition:   definitionBody(),
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - missing definition body",
			requestBody: web.CreateDefinitionRequest{
				WorkflowType: models.WorkflowTypeIncident,
				Name:         "Standard Incident",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)
			resp := doJSON(t, app, http.MethodPost, "/definitions/", tt.requestBody, nil)

			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestCreateDefinitionReturnsWarnings(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	body := definitionBody()
	body.Stages = append(body.Stages, &models.Stage{ID: "limbo", Name: "Limbo", Type: models.StageTypeIntermediate})

	result := createDefinition(t, app, web.CreateDefinitionRequest{
		WorkflowType: models.WorkflowTypeIncident,
		Name:         "Incident With Orphan",
		Definition:   body,
	})

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "limbo")
}

func TestDeactivateSoleDefaultConflicts(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	created := createDefinition(t, app, web.CreateDefinitionRequest{
		WorkflowType: models.WorkflowTypeIncident,
		Name:         "Standard Incident",
		IsDefault:    true,
		Definition:   definitionBody(),
	})

	resp := doJSON(t, app, http.MethodDelete, "/definitions/"+created.Definition.ID, nil, nil)

	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTicketLifecycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	createDefinition(t, app, web.CreateDefinitionRequest{
		WorkflowType: models.WorkflowTypeIncident,
		Name:         "Standard Incident",
		IsDefault:    true,
		Definition:   definitionBody(),
	})

	agent := map[string]string{web.HeaderActorID: "carol", web.HeaderActorRoles: "agent"}

	// Open a ticket against the default incident workflow.
	resp := doJSON(t, app, http.MethodPost, "/tickets/", web.CreateTicketRequest{
		WorkflowType: models.WorkflowTypeIncident,
		Fields:       map[string]any{"priority": "High"},
	}, agent)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[web.TicketResponse](t, resp)
	require.Equal(t, "open", created.Ticket.CurrentStageID)
	ticketID := created.Ticket.ID

	// The agent sees the resolve transition; an unprivileged user does not.
	resp = doJSON(t, app, http.MethodGet, "/tickets/"+ticketID+"/transitions", nil, agent)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listing := decode[map[string][]*models.Transition](t, resp)
	require.Len(t, listing["transitions"], 1)
	assert.Equal(t, "resolve", listing["transitions"][0].ID)

	// Wrong role is rejected with 403.
	resp = doJSON(t, app, http.MethodPost, "/tickets/"+ticketID+"/transitions/resolve", nil,
		map[string]string{web.HeaderActorID: "dave", web.HeaderActorRoles: "user"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	// Dry run passes for the agent without moving the ticket.
	resp = doJSON(t, app, http.MethodPost, "/tickets/"+ticketID+"/transitions/resolve/validate", nil, agent)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/tickets/"+ticketID, nil, agent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "open", decode[models.TicketSnapshot](t, resp).CurrentStageID)

	// Apply for real.
	resp = doJSON(t, app, http.MethodPost, "/tickets/"+ticketID+"/transitions/resolve", nil, agent)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	applied := decode[web.TicketResponse](t, resp)
	assert.Equal(t, "resolved", applied.Ticket.CurrentStageID)
	assert.NotEmpty(t, applied.Effects)

	// Closing without the required comment is rejected as unprocessable.
	resp = doJSON(t, app, http.MethodPost, "/tickets/"+ticketID+"/transitions/close", nil, agent)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/tickets/"+ticketID+"/transitions/close",
		web.ApplyTransitionRequest{Comment: "verified with reporter"}, agent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "closed", decode[web.TicketResponse](t, resp).Ticket.CurrentStageID)
}

func TestTicketSLAEndpoint(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	createDefinition(t, app, web.CreateDefinitionRequest{
		WorkflowType: models.WorkflowTypeIncident,
		Name:         "Standard Incident",
		IsDefault:    true,
		Definition:   definitionBody(),
	})

	resp := doJSON(t, app, http.MethodPost, "/tickets/", web.CreateTicketRequest{
		WorkflowType: models.WorkflowTypeIncident,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticketID := decode[web.TicketResponse](t, resp).Ticket.ID

	resp = doJSON(t, app, http.MethodGet, "/tickets/"+ticketID+"/sla", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	check := decode[map[string]any](t, resp)
	assert.Equal(t, "on_track", check["status"])
}

func TestRecordApprovalHandler(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	body := definitionBody()
	body.Transitions[1].RequiresApproval = true
	body.Transitions[1].ApprovalRoles = []string{"manager"}

	createDefinition(t, app, web.CreateDefinitionRequest{
		WorkflowType: models.WorkflowTypeIncident,
		Name:         "Approval Incident",
		IsDefault:    true,
		Definition:   body,
	})

	agent := map[string]string{web.HeaderActorID: "carol", web.HeaderActorRoles: "agent"}

	resp := doJSON(t, app, http.MethodPost, "/tickets/", web.CreateTicketRequest{
		WorkflowType: models.WorkflowTypeIncident,
	}, agent)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticketID := decode[web.TicketResponse](t, resp).Ticket.ID

	resp = doJSON(t, app, http.MethodPost, "/tickets/"+ticketID+"/transitions/resolve", nil, agent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Approval missing: the close is held.
	resp = doJSON(t, app, http.MethodPost, "/tickets/"+ticketID+"/transitions/close",
		web.ApplyTransitionRequest{Comment: "done"}, agent)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/tickets/"+ticketID+"/approvals",
		web.RecordApprovalRequest{Role: "manager", Status: "approved"},
		map[string]string{web.HeaderActorID: "boss"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/tickets/"+ticketID+"/transitions/close",
		web.ApplyTransitionRequest{Comment: "done"}, agent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "closed", decode[web.TicketResponse](t, resp).Ticket.CurrentStageID)
}

func TestGetTicketNotFound(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/tickets/missing", nil, nil)

	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
