package models

import (
	"math"
	"time"
)

// InstanceStatus is the lifecycle state of a workflow instance. Completed,
// failed and cancelled are terminal.
type InstanceStatus string

const (
	InstanceStatusPending   InstanceStatus = "pending"
	InstanceStatusRunning   InstanceStatus = "running"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusFailed    InstanceStatus = "failed"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusFailed || s == InstanceStatusCancelled
}

// ExecutionStatus is the per-action state within an instance.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusWaiting   ExecutionStatus = "waiting" // delay before start is elapsing
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the action execution has finished.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusSucceeded || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// WorkflowInstance is one execution run of a definition, created per matching
// trigger event. It pins the definition version it started against.
type WorkflowInstance struct {
	ID                 string             `json:"id"`
	DefinitionID       string             `json:"definition_id"`
	TenantID           string             `json:"tenant_id"`
	Status             InstanceStatus     `json:"status"`
	TriggeredBy        string             `json:"triggered_by,omitempty"` // trigger type that matched
	TriggerData        map[string]any     `json:"trigger_data,omitempty"`
	ExecutedActions    int                `json:"executed_actions"`
	FailedActions      int                `json:"failed_actions"`
	ProgressPercentage int                `json:"progress_percentage"`
	ActionExecutions   []*ActionExecution `json:"action_executions"`
	StartedAt          *time.Time         `json:"started_at,omitempty"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// ActionExecution tracks one action of one instance. RetryCount is a counter
// of attempts already made; ErrorMessage keeps the latest attempt's error.
type ActionExecution struct {
	ID           string          `json:"id"`
	ActionID     string          `json:"action_id"`
	ActionType   string          `json:"action_type"`
	Status       ExecutionStatus `json:"status"`
	RetryCount   int             `json:"retry_count"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Result       map[string]any  `json:"result,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// RecomputeProgress refreshes counters and the progress percentage from the
// action executions. Failed actions advance progress: they consume a slot.
func (i *WorkflowInstance) RecomputeProgress() {
	executed, failed := 0, 0

	for _, exec := range i.ActionExecutions {
		switch exec.Status {
		case ExecutionStatusSucceeded:
			executed++
		case ExecutionStatusFailed:
			failed++
		}
	}

	i.ExecutedActions = executed
	i.FailedActions = failed

	total := len(i.ActionExecutions)
	if total == 0 {
		i.ProgressPercentage = 0

		return
	}

	done := executed + failed
	i.ProgressPercentage = int(math.Round(float64(done) / float64(total) * 100))
}

// ExecutionByActionID returns the execution for the given action definition.
func (i *WorkflowInstance) ExecutionByActionID(actionID string) *ActionExecution {
	for _, exec := range i.ActionExecutions {
		if exec.ActionID == actionID {
			return exec
		}
	}

	return nil
}

// Clone returns a deep copy, used to serve consistent read snapshots while
// the instance is being mutated by its execution path.
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	clone := *i
	clone.TriggerData = copyMap(i.TriggerData)

	if i.StartedAt != nil {
		t := *i.StartedAt
		clone.StartedAt = &t
	}

	if i.CompletedAt != nil {
		t := *i.CompletedAt
		clone.CompletedAt = &t
	}

	clone.ActionExecutions = make([]*ActionExecution, len(i.ActionExecutions))
	for idx, exec := range i.ActionExecutions {
		e := *exec
		e.Result = copyMap(exec.Result)

		if exec.StartedAt != nil {
			t := *exec.StartedAt
			e.StartedAt = &t
		}

		if exec.CompletedAt != nil {
			t := *exec.CompletedAt
			e.CompletedAt = &t
		}

		clone.ActionExecutions[idx] = &e
	}

	return &clone
}
