// Package persistence provides the storage abstraction for workflow
// definitions and instances.
package persistence

import (
	"context"

	"github.com/vyomtech/automation/pkg/models"
)

type Persistence interface {
	Definitions() DefinitionRepository
	Instances() InstanceRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListDefinitionsOptions filters definition listings.
type ListDefinitionsOptions struct {
	TenantID string
	Enabled  *bool
	Limit    int
	Offset   int
}

type DefinitionRepository interface {
	Create(ctx context.Context, def *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	Update(ctx context.Context, def *models.WorkflowDefinition) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListDefinitionsOptions) ([]*models.WorkflowDefinition, error)

	// ListEnabledByTriggerType returns enabled definitions for a tenant having
	// at least one trigger of the given type. Used on the hot ingestion path.
	ListEnabledByTriggerType(ctx context.Context, tenantID, triggerType string) ([]*models.WorkflowDefinition, error)
}

// ListInstancesOptions filters instance listings.
type ListInstancesOptions struct {
	Limit  int
	Offset int
}

// InstanceStats aggregates terminal outcomes for a definition.
type InstanceStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

type InstanceRepository interface {
	Create(ctx context.Context, instance *models.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	Update(ctx context.Context, instance *models.WorkflowInstance) error
	ListByDefinition(ctx context.Context, definitionID string, opts ListInstancesOptions) ([]*models.WorkflowInstance, error)
	Stats(ctx context.Context, definitionID string) (*InstanceStats, error)

	// CancelIfActive transitions a non-terminal instance to cancelled, along
	// with its unfinished action executions, and returns the updated instance.
	// The status check and the write are atomic with respect to concurrent
	// updates; a terminal instance returns ErrInstanceTerminal untouched.
	CancelIfActive(ctx context.Context, id string) (*models.WorkflowInstance, error)
}
