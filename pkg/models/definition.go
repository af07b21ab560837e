// Package models defines the core domain models for ticket workflow automation.
package models

import "time"

// WorkflowType identifies the ticket family a workflow definition applies to.
type WorkflowType string

const (
	WorkflowTypeIncident    WorkflowType = "incident"
	WorkflowTypeRequest     WorkflowType = "request"
	WorkflowTypeChange      WorkflowType = "change"
	WorkflowTypeCMDB        WorkflowType = "cmdb"
	WorkflowTypeIntegration WorkflowType = "integration"
)

// WorkflowDefinition is a versioned, named workflow document. At most one
// active definition per WorkflowType may carry IsDefault; the definitions
// service enforces that on every write.
type WorkflowDefinition struct {
	ID           string          `json:"id"`
	WorkflowType WorkflowType    `json:"workflow_type" validate:"required,oneof=incident request change cmdb integration"`
	Name         string          `json:"name"          validate:"required,min=3"`
	Description  string          `json:"description"`
	IsDefault    bool            `json:"is_default"`
	IsActive     bool            `json:"is_active"`
	Version      string          `json:"version"       validate:"required"`
	Definition   *DefinitionBody `json:"definition"    validate:"required"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	ModifiedBy   string          `json:"modified_by,omitempty"`
	ModifiedAt   *time.Time      `json:"modified_at,omitempty"`
}

// DefinitionBody holds the executable content of a workflow definition.
type DefinitionBody struct {
	InitialStatus string        `json:"initial_status" validate:"required"`
	Stages        []*Stage      `json:"stages"         validate:"required,min=1"`
	Transitions   []*Transition `json:"transitions"`
	Rules         []*Rule       `json:"rules"`
}

// StageByID returns the stage with the given id, or nil.
func (b *DefinitionBody) StageByID(id string) *Stage {
	for _, s := range b.Stages {
		if s.ID == id {
			return s
		}
	}

	return nil
}

// TransitionByID returns the transition with the given id, or nil.
func (b *DefinitionBody) TransitionByID(id string) *Transition {
	for _, t := range b.Transitions {
		if t.ID == id {
			return t
		}
	}

	return nil
}

// TransitionsFrom returns all transitions whose origin is the given stage.
func (b *DefinitionBody) TransitionsFrom(stageID string) []*Transition {
	out := make([]*Transition, 0)

	for _, t := range b.Transitions {
		if t.FromStageID == stageID {
			out = append(out, t)
		}
	}

	return out
}

// InitialStage returns the stage named by InitialStatus, or nil.
func (b *DefinitionBody) InitialStage() *Stage {
	return b.StageByID(b.InitialStatus)
}
