package models

import "time"

// ExecutionContext carries the per-invocation facts the engine threads
// through validation, dispatch and rule evaluation.
type ExecutionContext struct {
	Actor        Actor              `json:"actor"`
	TransitionID string             `json:"transition_id,omitempty"`
	Metadata     TransitionMetadata `json:"metadata"`
	Now          time.Time          `json:"now"`
}
