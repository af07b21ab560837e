// Package conditions evaluates workflow condition expressions against ticket
// field snapshots. Evaluation is pure and total: missing fields compare
// against a null sentinel, and unsupported operator/value combinations
// evaluate to false instead of erroring, so rule passes never abort on a
// badly authored condition.
package conditions

import (
	"reflect"
	"strings"

	"github.com/stageflow/stageflow/pkg/models"
)

// Evaluate returns whether a single condition holds for the given fields.
func Evaluate(condition *models.Condition, fields map[string]any) bool {
	if condition == nil {
		return true
	}

	actual, _ := Resolve(condition.Field, fields)

	switch condition.Operator {
	case models.OperatorEquals:
		return valuesEqual(actual, condition.Value)
	case models.OperatorNotEquals:
		return !valuesEqual(actual, condition.Value)
	case models.OperatorGreaterThan:
		return compareNumeric(actual, condition.Value, func(a, b float64) bool { return a > b })
	case models.OperatorLessThan:
		return compareNumeric(actual, condition.Value, func(a, b float64) bool { return a < b })
	case models.OperatorContains:
		return contains(actual, condition.Value)
	case models.OperatorIn:
		return in(actual, condition.Value)
	default:
		return false
	}
}

// EvaluateAll returns whether every condition holds. Condition lists are
// conjunctive; an empty list is vacuously true.
func EvaluateAll(conds []*models.Condition, fields map[string]any) bool {
	for _, c := range conds {
		if !Evaluate(c, fields) {
			return false
		}
	}

	return true
}

// Resolve walks a dot-path into the field map. The second return reports
// whether the path resolved; an unresolved path yields nil.
func Resolve(path string, fields map[string]any) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = fields

	for part := range strings.SplitSeq(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// valuesEqual compares two values. Numeric types compare by value across
// int/float representations (JSON decoding yields float64); lists and maps
// compare by deep equality; everything else requires matching dynamic
// types, so "1" never equals 1.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)

	if aNum || bNum {
		return aNum && bNum && af == bf
	}

	// Interface comparison panics on uncomparable dynamic types such as
	// []any, which JSON-decoded list fields carry.
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return reflect.DeepEqual(a, b)
	}

	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func compareNumeric(a, b any, cmp func(a, b float64) bool) bool {
	af, aOK := toFloat(a)
	bf, bOK := toFloat(b)

	if !aOK || !bOK {
		return false
	}

	return cmp(af, bf)
}

// contains checks substring membership on strings (case-sensitive) and
// element membership on lists.
func contains(actual, value any) bool {
	switch field := actual.(type) {
	case string:
		needle, ok := value.(string)
		if !ok {
			return false
		}

		return strings.Contains(field, needle)
	case []any:
		for _, item := range field {
			if valuesEqual(item, value) {
				return true
			}
		}

		return false
	case []string:
		needle, ok := value.(string)
		if !ok {
			return false
		}

		for _, item := range field {
			if item == needle {
				return true
			}
		}

		return false
	default:
		return false
	}
}

// in checks whether the field value is a member of the condition's list
// value. Membership is value equality without type coercion.
func in(actual, value any) bool {
	list, ok := value.([]any)
	if !ok {
		return false
	}

	for _, item := range list {
		if valuesEqual(actual, item) {
			return true
		}
	}

	return false
}
