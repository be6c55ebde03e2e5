// Package models defines the core domain models for the workflow automation engine.
package models

import (
	"sort"
	"time"
)

// Built-in trigger types. The set is open: any string registered by an event
// producer is a valid trigger type.
const (
	TriggerTypeLeadCreated   = "lead_created"
	TriggerTypeLeadScored    = "lead_scored"
	TriggerTypeTaskCompleted = "task_completed"
	TriggerTypeCustomEvent   = "custom_event"
)

// WorkflowDefinition is a tenant-owned automation template: a set of triggers
// that start it and an ordered list of actions to run.
type WorkflowDefinition struct {
	ID          string               `json:"id"`
	TenantID    string               `json:"tenant_id"   validate:"required"`
	Name        string               `json:"name"        validate:"required,min=1"`
	Description string               `json:"description"`
	Enabled     bool                 `json:"enabled"`
	Triggers    []*TriggerDefinition `json:"triggers"    validate:"required,min=1,dive"`
	Actions     []*ActionDefinition  `json:"actions"     validate:"required,min=1,dive"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// TriggerDefinition fires a workflow when an event of TriggerType arrives and
// every condition holds. A trigger with no conditions matches every event of
// its type.
type TriggerDefinition struct {
	ID            string         `json:"id"`
	TriggerType   string         `json:"trigger_type"             validate:"required"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty"`
	Conditions    []Condition    `json:"conditions,omitempty"     validate:"dive"`
}

// ActionDefinition is one ordered, delayable, retryable unit of work.
// DelaySeconds is measured from the completion of the previous action.
type ActionDefinition struct {
	ID            string         `json:"id"`
	ActionType    string         `json:"action_type"             validate:"required"`
	ActionConfig  map[string]any `json:"action_config,omitempty"`
	ActionOrder   int            `json:"action_order"            validate:"min=1"`
	DelaySeconds  int            `json:"delay_seconds"           validate:"min=0"`
	HaltOnFailure bool           `json:"halt_on_failure"`
}

// SortedActions returns the actions ordered by ActionOrder. Ties keep the
// definition order; the sort is stable.
func (d *WorkflowDefinition) SortedActions() []*ActionDefinition {
	actions := make([]*ActionDefinition, len(d.Actions))
	copy(actions, d.Actions)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].ActionOrder < actions[j].ActionOrder
	})

	return actions
}

// ActionByID returns the action with the given ID, or nil.
func (d *WorkflowDefinition) ActionByID(id string) *ActionDefinition {
	for _, action := range d.Actions {
		if action.ID == id {
			return action
		}
	}

	return nil
}

// Snapshot returns a deep copy of the definition. Instances execute against a
// snapshot so concurrent edits are never visible mid-run.
func (d *WorkflowDefinition) Snapshot() *WorkflowDefinition {
	snapshot := *d

	snapshot.Triggers = make([]*TriggerDefinition, len(d.Triggers))
	for i, trigger := range d.Triggers {
		t := *trigger
		t.TriggerConfig = copyMap(trigger.TriggerConfig)
		t.Conditions = make([]Condition, len(trigger.Conditions))
		copy(t.Conditions, trigger.Conditions)
		snapshot.Triggers[i] = &t
	}

	snapshot.Actions = make([]*ActionDefinition, len(d.Actions))
	for i, action := range d.Actions {
		a := *action
		a.ActionConfig = copyMap(action.ActionConfig)
		snapshot.Actions[i] = &a
	}

	return &snapshot
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
