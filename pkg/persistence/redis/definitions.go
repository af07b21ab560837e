package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	redis "github.com/redis/go-redis/v9"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// DefinitionRepository stores definitions as JSON values with a per-type
// index set.
type DefinitionRepository struct {
	client redis.UniversalClient
}

func (dr *DefinitionRepository) Definitions(ctx context.Context, workflowType models.WorkflowType) ([]*models.WorkflowDefinition, error) {
	ids, err := dr.client.SMembers(ctx, definitionTypeKey(string(workflowType))).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions for %s: %w", workflowType, err)
	}

	out := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		definition, err := dr.DefinitionByID(ctx, id)
		if err != nil {
			if persistence.IsDefinitionNotFound(err) {
				continue // index entry outlived the value
			}

			return nil, err
		}

		out = append(out, definition)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

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

func (dr *DefinitionRepository) DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	body, err := dr.client.Get(ctx, definitionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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

func (dr *DefinitionRepository) SaveDefinition(ctx context.Context, definition *models.WorkflowDefinition) error {
	data, err := json.Marshal(definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition %s: %w", definition.ID, err)
	}

	_, err = dr.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, definitionKey(definition.ID), data, 0)
		pipe.SAdd(ctx, definitionTypeKey(string(definition.WorkflowType)), definition.ID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save definition %s: %w", definition.ID, err)
	}

	return nil
}
