package models

// Transition is a permitted edge between two stages. Self-loops are allowed
// (re-entry re-runs on_exit/on_enter actions); transitions out of a final
// stage are rejected by the validator regardless of what the definition says.
type Transition struct {
	ID               string       `json:"id"            validate:"required"`
	FromStageID      string       `json:"from_stage_id" validate:"required"`
	ToStageID        string       `json:"to_stage_id"   validate:"required"`
	Label            string       `json:"label"`
	Conditions       []*Condition `json:"conditions,omitempty"`
	RequiredRoles    []string     `json:"required_roles,omitempty"`
	RequiresComment  bool         `json:"requires_comment"`
	RequiresApproval bool         `json:"requires_approval"`
	ApprovalRoles    []string     `json:"approval_roles,omitempty"`
}

// AllowsRole reports whether the actor role set satisfies RequiredRoles.
// An empty RequiredRoles list means any actor may request the transition.
func (t *Transition) AllowsRole(actorRoles []string) bool {
	if len(t.RequiredRoles) == 0 {
		return true
	}

	for _, required := range t.RequiredRoles {
		for _, have := range actorRoles {
			if required == have {
				return true
			}
		}
	}

	return false
}
