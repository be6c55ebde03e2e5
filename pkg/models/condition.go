package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ConditionOperator compares an event payload field against a literal value.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorContains    ConditionOperator = "contains"
)

// Condition is a single (field, operator, value) predicate. All conditions of
// a trigger must hold for it to fire.
type Condition struct {
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required,oneof=equals not_equals greater_than less_than contains"`
	Value    any               `json:"value"`
}

// Matches evaluates the condition against an event payload. A missing field
// or an uncomparable value pair is reported as an error; callers treat that
// as "does not match" rather than a fault.
func (c Condition) Matches(payload map[string]any) (bool, error) {
	actual, ok := payload[c.Field]
	if !ok {
		return false, fmt.Errorf("field %q not present in event payload", c.Field)
	}

	switch c.Operator {
	case OperatorEquals:
		return looseEqual(actual, c.Value), nil
	case OperatorNotEquals:
		return !looseEqual(actual, c.Value), nil
	case OperatorGreaterThan, OperatorLessThan:
		left, err := toFloat(actual)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", c.Field, err)
		}

		right, err := toFloat(c.Value)
		if err != nil {
			return false, fmt.Errorf("condition value: %w", err)
		}

		if c.Operator == OperatorGreaterThan {
			return left > right, nil
		}

		return left < right, nil
	case OperatorContains:
		return strings.Contains(stringify(actual), stringify(c.Value)), nil
	default:
		return false, fmt.Errorf("unsupported condition operator: %s", c.Operator)
	}
}

// looseEqual compares values after normalizing numbers, so a JSON float64 42
// equals an int 42 and the string "42".
func looseEqual(a, b any) bool {
	if af, err := toFloat(a); err == nil {
		if bf, err := toFloat(b); err == nil {
			return af == bf
		}
	}

	return stringify(a) == stringify(b)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", n)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("value of type %T is not numeric", v)
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}
