package models

import (
	"maps"
	"time"
)

// TicketSnapshot is the engine's read/write view of a ticket. A ticket is
// bound to the workflow definition that was active when it entered the
// initial stage; later edits to the definition do not affect it.
type TicketSnapshot struct {
	ID                   string         `json:"id"`
	WorkflowType         WorkflowType   `json:"workflow_type"`
	WorkflowDefinitionID string         `json:"workflow_definition_id"`
	CurrentStageID       string         `json:"current_stage_id"`
	StageEnteredAt       time.Time      `json:"stage_entered_at"`
	Fields               map[string]any `json:"fields,omitempty"`

	// Version is the optimistic-concurrency token checked by the ticket
	// store on write-back. The engine never interprets it.
	Version int64 `json:"version"`
}

// Clone returns a deep-enough copy for the engine's speculative mutation:
// the Fields map is copied one level deep, which covers every field the
// dispatcher writes.
func (t *TicketSnapshot) Clone() *TicketSnapshot {
	clone := *t
	clone.Fields = make(map[string]any, len(t.Fields))
	maps.Copy(clone.Fields, t.Fields)

	return &clone
}

// Actor is the resolved identity on whose behalf a transition is requested.
// Role resolution happens upstream; the engine only intersects role sets.
type Actor struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// TransitionMetadata carries the evidence a transition may require.
type TransitionMetadata struct {
	Comment string `json:"comment,omitempty"`
}
