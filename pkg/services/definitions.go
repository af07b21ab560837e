package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/schema"
)

// Definitions is the authoring service for workflow definitions. It owns the
// invariants the store does not: default uniqueness per workflow type,
// exactly one initial stage, stage references resolving, and the advisory
// reachability check.
type Definitions struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewDefinitions creates a new definitions service.
func NewDefinitions(p persistence.Persistence) *Definitions {
	return &Definitions{
		persistence: p,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (d *Definitions) HealthCheck(ctx context.Context) (string, bool) {
	if d.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := d.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateResult carries the stored definition plus advisory authoring
// warnings (currently only reachability findings).
type CreateResult struct {
	Definition *models.WorkflowDefinition `json:"definition"`
	Warnings   []string                   `json:"warnings,omitempty"`
}

// Create validates and stores a new workflow definition. When the new
// definition is marked default, prior defaults for its type are unset in the
// same operation.
func (d *Definitions) Create(ctx context.Context, definition *models.WorkflowDefinition, actorID string) (*CreateResult, error) {
	if definition == nil {
		return nil, NewValidationError("Create", "definition_nil", "", ErrDefinitionNil)
	}

	definition.ID = uuid.New().String()
	definition.IsActive = true
	definition.CreatedBy = actorID
	definition.CreatedAt = time.Now().UTC()

	if definition.Version == "" {
		definition.Version = "1.0.0"
	}

	if err := d.validateDefinition(definition); err != nil {
		return nil, err
	}

	if definition.IsDefault {
		if err := d.unsetPriorDefaults(ctx, definition.WorkflowType, definition.ID); err != nil {
			return nil, err
		}
	}

	if err := d.persistence.DefinitionRepository().SaveDefinition(ctx, definition); err != nil {
		return nil, fmt.Errorf("saving definition: %w", err)
	}

	return &CreateResult{
		Definition: definition,
		Warnings:   CheckReachability(definition.Definition),
	}, nil
}

// Update validates and stores changes to an existing definition, preserving
// identity and audit fields and re-enforcing default uniqueness.
func (d *Definitions) Update(ctx context.Context, id string, updated *models.WorkflowDefinition, actorID string) (*CreateResult, error) {
	if updated == nil {
		return nil, NewValidationError("Update", "definition_nil", "", ErrDefinitionNil)
	}

	existing, err := d.persistence.DefinitionRepository().DefinitionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated.ID = existing.ID
	updated.WorkflowType = existing.WorkflowType
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	updated.IsActive = existing.IsActive
	updated.ModifiedBy = actorID
	updated.ModifiedAt = &now

	if err := d.validateDefinition(updated); err != nil {
		return nil, err
	}

	if updated.IsDefault {
		if err := d.unsetPriorDefaults(ctx, updated.WorkflowType, updated.ID); err != nil {
			return nil, err
		}
	}

	if err := d.persistence.DefinitionRepository().SaveDefinition(ctx, updated); err != nil {
		return nil, fmt.Errorf("saving definition: %w", err)
	}

	return &CreateResult{
		Definition: updated,
		Warnings:   CheckReachability(updated.Definition),
	}, nil
}

// Get fetches a definition by id.
func (d *Definitions) Get(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return d.persistence.DefinitionRepository().DefinitionByID(ctx, id)
}

// ListActive lists the active definitions for a workflow type.
func (d *Definitions) ListActive(ctx context.Context, workflowType models.WorkflowType) ([]*models.WorkflowDefinition, error) {
	return d.persistence.DefinitionRepository().ActiveDefinitions(ctx, workflowType)
}

// Default resolves the active default definition for a workflow type.
func (d *Definitions) Default(ctx context.Context, workflowType models.WorkflowType) (*models.WorkflowDefinition, error) {
	return d.persistence.DefinitionRepository().DefaultDefinition(ctx, workflowType)
}

// Deactivate retires a definition. Definitions are never hard-deleted, and
// the sole default for a type cannot be retired until a replacement default
// exists: in-flight tickets and new tickets of that type would otherwise
// have no workflow to follow.
func (d *Definitions) Deactivate(ctx context.Context, id, actorID string) error {
	repo := d.persistence.DefinitionRepository()

	definition, err := repo.DefinitionByID(ctx, id)
	if err != nil {
		return err
	}

	if definition.IsDefault && definition.IsActive {
		return &ServiceError{Op: "Deactivate", Code: "sole_default", Err: ErrCannotDeactivateDefault}
	}

	now := time.Now().UTC()
	definition.IsActive = false
	definition.ModifiedBy = actorID
	definition.ModifiedAt = &now

	return repo.SaveDefinition(ctx, definition)
}

// validateDefinition runs struct tags, the JSON Schema pass, and the
// structural cross-reference checks.
func (d *Definitions) validateDefinition(definition *models.WorkflowDefinition) error {
	if definition.Definition == nil {
		return NewValidationError("validate", "body_nil", "", ErrDefinitionBodyNil)
	}

	if definition.Name == "" {
		return NewValidationError("validate", "name_required", "", ErrNameRequired)
	}

	if err := d.validate.Struct(definition); err != nil {
		return NewValidationError("validate", "struct", err.Error(), ErrInvalidRequest)
	}

	if err := schema.ValidateDefinitionDocument(asDocument(definition.Definition)); err != nil {
		return NewValidationError("validate", "schema", err.Error(), ErrInvalidRequest)
	}

	return validateStructure(definition.Definition)
}

// validateStructure checks the cross-references the schema cannot: exactly
// one initial stage matching initial_status, and every transition endpoint
// resolving to a declared stage.
func validateStructure(body *models.DefinitionBody) error {
	initialCount := 0

	for _, stage := range body.Stages {
		if stage.Type == models.StageTypeInitial {
			initialCount++
		}
	}

	if initialCount != 1 {
		return NewValidationError("validate", "initial_stage", fmt.Sprintf("found %d initial stages", initialCount), ErrNoInitialStage)
	}

	initial := body.InitialStage()
	if initial == nil || initial.Type != models.StageTypeInitial {
		return NewValidationError("validate", "initial_status", "", ErrInitialStatusMismatch)
	}

	for _, transition := range body.Transitions {
		if body.StageByID(transition.FromStageID) == nil {
			return NewValidationError("validate", "stage_ref",
				fmt.Sprintf("transition %s: from stage %q", transition.ID, transition.FromStageID), ErrUnknownStageRef)
		}

		if body.StageByID(transition.ToStageID) == nil {
			return NewValidationError("validate", "stage_ref",
				fmt.Sprintf("transition %s: to stage %q", transition.ID, transition.ToStageID), ErrUnknownStageRef)
		}
	}

	return nil
}

// CheckReachability reports advisory findings about the transition graph: a
// final stage should be reachable from the initial stage. The engine still
// executes definitions with findings; it only refuses individual illegal
// transitions at runtime.
func CheckReachability(body *models.DefinitionBody) []string {
	if body == nil {
		return nil
	}

	reachable := map[string]bool{body.InitialStatus: true}
	frontier := []string{body.InitialStatus}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		for _, t := range body.TransitionsFrom(current) {
			if !reachable[t.ToStageID] {
				reachable[t.ToStageID] = true
				frontier = append(frontier, t.ToStageID)
			}
		}
	}

	warnings := make([]string, 0)
	finalReachable := false

	for _, stage := range body.Stages {
		if stage.IsFinal() && reachable[stage.ID] {
			finalReachable = true
		}

		if !reachable[stage.ID] {
			warnings = append(warnings, fmt.Sprintf("stage %q is unreachable from the initial stage", stage.ID))
		}
	}

	if !finalReachable {
		warnings = append(warnings, "no final stage is reachable from the initial stage")
	}

	return warnings
}

// unsetPriorDefaults clears IsDefault on every other active definition of
// the type. Runs under the repository's write serialization so two
// concurrent authors cannot both end up default.
func (d *Definitions) unsetPriorDefaults(ctx context.Context, workflowType models.WorkflowType, keepID string) error {
	repo := d.persistence.DefinitionRepository()

	active, err := repo.ActiveDefinitions(ctx, workflowType)
	if err != nil {
		return fmt.Errorf("listing active definitions: %w", err)
	}

	for _, other := range active {
		if other.ID == keepID || !other.IsDefault {
			continue
		}

		other.IsDefault = false
		if err := repo.SaveDefinition(ctx, other); err != nil {
			return fmt.Errorf("unsetting prior default %s: %w", other.ID, err)
		}
	}

	return nil
}

// asDocument converts a typed body back into the raw map form the schema
// validator consumes.
func asDocument(body *models.DefinitionBody) map[string]any {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil
	}

	var document map[string]any
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil
	}

	return document
}
