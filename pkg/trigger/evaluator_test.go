package trigger_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/trigger"
)

func definitionWith(id string, enabled bool, triggers ...*models.TriggerDefinition) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:       id,
		TenantID: "tenant-1",
		Name:     id,
		Enabled:  enabled,
		Triggers: triggers,
		Actions:  []*models.ActionDefinition{{ID: "a-1", ActionType: "send_email", ActionOrder: 1}},
	}
}

func TestEvaluatorMatch(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewEvaluator(slog.Default())

	event := events.NewDomainEvent(models.TriggerTypeLeadScored, "tenant-1", map[string]any{
		"lead_id": "lead-1",
		"score":   float64(80),
		"source":  "webinar",
	})

	tests := []struct {
		name       string
		definition *models.WorkflowDefinition
		expected   bool
	}{
		{
			name: "trigger type match with no conditions",
			definition: definitionWith("wf-1", true,
				&models.TriggerDefinition{TriggerType: models.TriggerTypeLeadScored}),
			expected: true,
		},
		{
			name: "trigger type mismatch",
			definition: definitionWith("wf-2", true,
				&models.TriggerDefinition{TriggerType: models.TriggerTypeLeadCreated}),
			expected: false,
		},
		{
			name: "disabled definition never matches",
			definition: definitionWith("wf-3", false,
				&models.TriggerDefinition{TriggerType: models.TriggerTypeLeadScored}),
			expected: false,
		},
		{
			name: "all conditions hold",
			definition: definitionWith("wf-4", true,
				&models.TriggerDefinition{
					TriggerType: models.TriggerTypeLeadScored,
					Conditions: []models.Condition{
						{Field: "score", Operator: models.OperatorGreaterThan, Value: 50},
						{Field: "source", Operator: models.OperatorEquals, Value: "webinar"},
					},
				}),
			expected: true,
		},
		{
			name: "one failing condition blocks the trigger",
			definition: definitionWith("wf-5", true,
				&models.TriggerDefinition{
					TriggerType: models.TriggerTypeLeadScored,
					Conditions: []models.Condition{
						{Field: "score", Operator: models.OperatorGreaterThan, Value: 50},
						{Field: "source", Operator: models.OperatorEquals, Value: "cold_call"},
					},
				}),
			expected: false,
		},
		{
			name: "missing payload field is a non-match",
			definition: definitionWith("wf-6", true,
				&models.TriggerDefinition{
					TriggerType: models.TriggerTypeLeadScored,
					Conditions: []models.Condition{
						{Field: "budget", Operator: models.OperatorGreaterThan, Value: 1000},
					},
				}),
			expected: false,
		},
		{
			name: "any trigger may fire the definition",
			definition: definitionWith("wf-7", true,
				&models.TriggerDefinition{
					TriggerType: models.TriggerTypeLeadScored,
					Conditions: []models.Condition{
						{Field: "score", Operator: models.OperatorGreaterThan, Value: 99},
					},
				},
				&models.TriggerDefinition{TriggerType: models.TriggerTypeLeadScored}),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			matched := evaluator.Match(event, []*models.WorkflowDefinition{tt.definition})

			if tt.expected {
				assert.Len(t, matched, 1)
			} else {
				assert.Empty(t, matched)
			}
		})
	}
}

func TestEvaluatorMatchMultipleDefinitions(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewEvaluator(slog.Default())

	event := events.NewDomainEvent(models.TriggerTypeTaskCompleted, "tenant-1", map[string]any{"task_id": "t-1"})

	definitions := []*models.WorkflowDefinition{
		definitionWith("wf-1", true, &models.TriggerDefinition{TriggerType: models.TriggerTypeTaskCompleted}),
		definitionWith("wf-2", true, &models.TriggerDefinition{TriggerType: models.TriggerTypeTaskCompleted}),
		definitionWith("wf-3", true, &models.TriggerDefinition{TriggerType: models.TriggerTypeLeadCreated}),
	}

	matched := evaluator.Match(event, definitions)

	assert.Len(t, matched, 2)
	assert.Equal(t, "wf-1", matched[0].ID)
	assert.Equal(t, "wf-2", matched[1].ID)
}
