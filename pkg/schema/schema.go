// Package schema validates authored workflow definition documents against a
// JSON Schema before the structural checks in the services layer run. The
// schema catches shape errors (wrong types, missing required keys); the
// services layer owns cross-reference checks like stage existence.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema describes the DefinitionBody document shape.
var definitionSchema = map[string]any{
	"type":     "object",
	"required": []any{"initial_status", "stages"},
	"properties": map[string]any{
		"initial_status": map[string]any{"type": "string", "minLength": 1},
		"stages": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "name", "type"},
				"properties": map[string]any{
					"id":   map[string]any{"type": "string", "minLength": 1},
					"name": map[string]any{"type": "string", "minLength": 1},
					"type": map[string]any{
						"type": "string",
						"enum": []any{"initial", "intermediate", "final"},
					},
					"order": map[string]any{"type": "integer"},
					"sla": map[string]any{
						"type":     "object",
						"required": []any{"duration_hours"},
						"properties": map[string]any{
							"duration_hours":            map[string]any{"type": "number", "exclusiveMinimum": 0},
							"warning_threshold_percent": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
						},
					},
				},
			},
		},
		"transitions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "from_stage_id", "to_stage_id"},
				"properties": map[string]any{
					"id":            map[string]any{"type": "string", "minLength": 1},
					"from_stage_id": map[string]any{"type": "string", "minLength": 1},
					"to_stage_id":   map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
		"rules": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "name", "actions"},
				"properties": map[string]any{
					"id":       map[string]any{"type": "string", "minLength": 1},
					"name":     map[string]any{"type": "string", "minLength": 1},
					"priority": map[string]any{"type": "integer"},
					"actions":  map[string]any{"type": "array", "minItems": 1},
				},
			},
		},
	},
}

// ValidateDefinitionDocument validates a raw definition document against the
// schema.
func ValidateDefinitionDocument(document map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(definitionSchema)
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("schema validation could not run: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("definition document invalid: %s", strings.Join(details, "; "))
	}

	return nil
}
