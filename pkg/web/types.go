// Package web provides the REST API for managing workflow definitions and
// inspecting their instances.
package web

import "github.com/vyomtech/automation/pkg/models"

// CreateWorkflowRequest is the request body for creating a definition.
type CreateWorkflowRequest struct {
	TenantID    string                      `json:"tenant_id"   validate:"required"`
	Name        string                      `json:"name"        validate:"required,min=1"`
	Description string                      `json:"description"`
	Enabled     *bool                       `json:"enabled,omitempty"`
	Triggers    []*models.TriggerDefinition `json:"triggers"    validate:"required,min=1"`
	Actions     []*models.ActionDefinition  `json:"actions"     validate:"required,min=1"`
}

// UpdateWorkflowRequest replaces a definition's content. The tenant never
// changes on update.
type UpdateWorkflowRequest struct {
	Name        string                      `json:"name"        validate:"required,min=1"`
	Description string                      `json:"description"`
	Enabled     *bool                       `json:"enabled,omitempty"`
	Triggers    []*models.TriggerDefinition `json:"triggers"    validate:"required,min=1"`
	Actions     []*models.ActionDefinition  `json:"actions"     validate:"required,min=1"`
}

// SetEnabledRequest flips a definition on or off.
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// TriggerWorkflowRequest starts a definition by hand.
type TriggerWorkflowRequest struct {
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// IngestEventRequest is a domain event submitted over HTTP instead of the
// event bus.
type IngestEventRequest struct {
	Type     string         `json:"type"      validate:"required"`
	TenantID string         `json:"tenant_id" validate:"required"`
	Payload  map[string]any `json:"payload,omitempty"`
}
