package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// DefinitionRepository handles workflow-definition file operations. A mutex
// serializes writes so the default-uniqueness pass in the services layer
// reads a consistent view.
type DefinitionRepository struct {
	root string
	mu   sync.Mutex
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{root: root}
}

func (dr *DefinitionRepository) dir() string {
	return path.Join(dr.root, "definitions")
}

// Definitions returns all definitions for a workflow type, newest first.
func (dr *DefinitionRepository) Definitions(ctx context.Context, workflowType models.WorkflowType) ([]*models.WorkflowDefinition, error) {
	all, err := dr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*models.WorkflowDefinition, 0)

	for _, d := range all {
		if d.WorkflowType == workflowType {
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

// ActiveDefinitions returns the active definitions for a workflow type.
func (dr *DefinitionRepository) ActiveDefinitions(ctx context.Context, workflowType models.WorkflowType) ([]*models.WorkflowDefinition, error) {
	definitions, err := dr.Definitions(ctx, workflowType)
	if err != nil {
		return nil, err
	}

	out := make([]*models.WorkflowDefinition, 0)

	for _, d := range definitions {
		if d.IsActive {
			out = append(out, d)
		}
	}

	return out, nil
}

// DefinitionByID retrieves a definition by its ID from the file system.
func (dr *DefinitionRepository) DefinitionByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	filePath := filepath.Clean(path.Join(dr.dir(), id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("DefinitionByID", id, persistence.ErrDefinitionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch definition %s: %w", id, err)
	}

	var definition models.WorkflowDefinition

	err = json.Unmarshal(body, &definition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition %s: %w", id, err)
	}

	return &definition, nil
}

// DefaultDefinition returns the active default definition for a type.
func (dr *DefinitionRepository) DefaultDefinition(ctx context.Context, workflowType models.WorkflowType) (*models.WorkflowDefinition, error) {
	definitions, err := dr.ActiveDefinitions(ctx, workflowType)
	if err != nil {
		return nil, err
	}

	for _, d := range definitions {
		if d.IsDefault {
			return d, nil
		}
	}

	return nil, persistence.NewStoreError("DefaultDefinition", string(workflowType), persistence.ErrNoDefaultDefinition)
}

// SaveDefinition writes a definition to the file system.
func (dr *DefinitionRepository) SaveDefinition(_ context.Context, definition *models.WorkflowDefinition) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	err := os.MkdirAll(dr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create definitions directory: %w", err)
	}

	data, err := json.MarshalIndent(definition, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal definition %s: %w", definition.ID, err)
	}

	filePath := path.Join(dr.dir(), definition.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

func (dr *DefinitionRepository) loadAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	root := os.DirFS(dr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list definition files: %w", err)
	}

	out := make([]*models.WorkflowDefinition, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5] // Remove .json extension

		definition, err := dr.DefinitionByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition %s: %w", id, err)
		}

		out = append(out, definition)
	}

	return out, nil
}
