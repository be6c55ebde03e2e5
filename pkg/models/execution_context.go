package models

// ExecutionContext carries the data an action handler needs to perform its
// side effect: who triggered the instance and what earlier actions produced.
type ExecutionContext struct {
	InstanceID    string         `json:"instance_id"`
	DefinitionID  string         `json:"definition_id"`
	TenantID      string         `json:"tenant_id"`
	TriggerType   string         `json:"trigger_type,omitempty"`
	TriggerData   map[string]any `json:"trigger_data,omitempty"`
	ActionResults map[string]any `json:"action_results,omitempty"`
}
