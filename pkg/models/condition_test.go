package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionMatches(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"status": "qualified",
		"score":  float64(75),
		"email":  "ana@example.com",
		"count":  3,
	}

	tests := []struct {
		name      string
		condition Condition
		expected  bool
	}{
		{
			name:      "equals string",
			condition: Condition{Field: "status", Operator: OperatorEquals, Value: "qualified"},
			expected:  true,
		},
		{
			name:      "equals string mismatch",
			condition: Condition{Field: "status", Operator: OperatorEquals, Value: "new"},
			expected:  false,
		},
		{
			name:      "equals across numeric types",
			condition: Condition{Field: "score", Operator: OperatorEquals, Value: 75},
			expected:  true,
		},
		{
			name:      "equals numeric string",
			condition: Condition{Field: "count", Operator: OperatorEquals, Value: "3"},
			expected:  true,
		},
		{
			name:      "not equals",
			condition: Condition{Field: "status", Operator: OperatorNotEquals, Value: "new"},
			expected:  true,
		},
		{
			name:      "greater than",
			condition: Condition{Field: "score", Operator: OperatorGreaterThan, Value: 50},
			expected:  true,
		},
		{
			name:      "greater than boundary is exclusive",
			condition: Condition{Field: "score", Operator: OperatorGreaterThan, Value: 75},
			expected:  false,
		},
		{
			name:      "less than",
			condition: Condition{Field: "score", Operator: OperatorLessThan, Value: 100},
			expected:  true,
		},
		{
			name:      "contains",
			condition: Condition{Field: "email", Operator: OperatorContains, Value: "@example."},
			expected:  true,
		},
		{
			name:      "contains mismatch",
			condition: Condition{Field: "email", Operator: OperatorContains, Value: "@other."},
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matched, err := tt.condition.Matches(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, matched)
		})
	}
}

func TestConditionMatchesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		condition Condition
		payload   map[string]any
	}{
		{
			name:      "missing field",
			condition: Condition{Field: "score", Operator: OperatorEquals, Value: 10},
			payload:   map[string]any{"status": "new"},
		},
		{
			name:      "non numeric comparison",
			condition: Condition{Field: "status", Operator: OperatorGreaterThan, Value: 10},
			payload:   map[string]any{"status": "new"},
		},
		{
			name:      "unsupported operator",
			condition: Condition{Field: "status", Operator: "matches_regex", Value: ".*"},
			payload:   map[string]any{"status": "new"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matched, err := tt.condition.Matches(tt.payload)
			require.Error(t, err)
			assert.False(t, matched)
		})
	}
}
