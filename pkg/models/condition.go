package models

// ConditionOperator is the comparison applied between a ticket field and a
// condition value.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorContains    ConditionOperator = "contains"
	OperatorIn          ConditionOperator = "in"
)

// Condition compares a dot-path field of the ticket snapshot against a value.
// Lists of conditions are always conjunctive.
type Condition struct {
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required,oneof=equals not_equals greater_than less_than contains in"`
	Value    any               `json:"value"`
}
