package models

// Rule is stateless automation: conditions are ANDed against the ticket
// snapshot every time the ticket enters a stage (and on the periodic sweep),
// and matching rules fire their actions without a human transition call.
// Lower Priority values are evaluated first.
type Rule struct {
	ID         string       `json:"id"       validate:"required"`
	Name       string       `json:"name"     validate:"required"`
	Conditions []*Condition `json:"conditions,omitempty"`
	Actions    []*Action    `json:"actions"  validate:"required,min=1"`
	Priority   int          `json:"priority"`
}
