package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedActions(t *testing.T) {
	t.Parallel()

	def := &WorkflowDefinition{
		Actions: []*ActionDefinition{
			{ID: "c", ActionOrder: 3},
			{ID: "a", ActionOrder: 1},
			{ID: "b", ActionOrder: 2},
		},
	}

	sorted := def.SortedActions()

	assert.Equal(t, "a", sorted[0].ID)
	assert.Equal(t, "b", sorted[1].ID)
	assert.Equal(t, "c", sorted[2].ID)

	// The definition's own order is untouched.
	assert.Equal(t, "c", def.Actions[0].ID)
}

func TestSortedActionsStableOnTies(t *testing.T) {
	t.Parallel()

	def := &WorkflowDefinition{
		Actions: []*ActionDefinition{
			{ID: "first", ActionOrder: 1},
			{ID: "second", ActionOrder: 1},
			{ID: "third", ActionOrder: 1},
		},
	}

	sorted := def.SortedActions()

	assert.Equal(t, "first", sorted[0].ID)
	assert.Equal(t, "second", sorted[1].ID)
	assert.Equal(t, "third", sorted[2].ID)
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()

	def := &WorkflowDefinition{
		ID:      "wf-1",
		Enabled: true,
		Triggers: []*TriggerDefinition{
			{
				ID:          "t-1",
				TriggerType: TriggerTypeLeadCreated,
				Conditions:  []Condition{{Field: "score", Operator: OperatorGreaterThan, Value: 50}},
			},
		},
		Actions: []*ActionDefinition{
			{ID: "a-1", ActionType: "send_email", ActionConfig: map[string]any{"subject": "hi"}, ActionOrder: 1},
		},
	}

	snapshot := def.Snapshot()

	def.Actions[0].ActionConfig["subject"] = "changed"
	def.Actions[0].ActionOrder = 9
	def.Triggers[0].Conditions[0].Value = 99
	def.Enabled = false

	assert.Equal(t, "hi", snapshot.Actions[0].ActionConfig["subject"])
	assert.Equal(t, 1, snapshot.Actions[0].ActionOrder)
	assert.Equal(t, 50, snapshot.Triggers[0].Conditions[0].Value)
	assert.True(t, snapshot.Enabled)
}

func TestActionByID(t *testing.T) {
	t.Parallel()

	def := &WorkflowDefinition{
		Actions: []*ActionDefinition{{ID: "a-1"}, {ID: "a-2"}},
	}

	assert.Equal(t, "a-2", def.ActionByID("a-2").ID)
	assert.Nil(t, def.ActionByID("missing"))
}
