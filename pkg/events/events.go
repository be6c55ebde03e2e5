// Package events defines the domain event envelope and the engine lifecycle
// notifications published on the event bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries both incoming domain events and engine lifecycle events.
const Topic = "automation.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

// ManualTriggerType is the domain event type used to start a workflow by
// hand, skipping condition evaluation. Its payload carries definition_id and
// an optional trigger_data map.
const ManualTriggerType = "workflow.trigger_requested"

const (
	// Ingestion.
	DomainEventReceived EventType = "event.received"

	// Instance lifecycle.
	InstanceStartedEvent   EventType = "instance.started"
	InstanceCompletedEvent EventType = "instance.completed"
	InstanceFailedEvent    EventType = "instance.failed"
	InstanceCancelledEvent EventType = "instance.cancelled"

	// Per-action lifecycle.
	ActionSucceededEvent EventType = "action.succeeded"
	ActionFailedEvent    EventType = "action.failed"

	// Outbound side effects requested from the surrounding product.
	CommandIssuedEvent EventType = "command.issued"
)

// DomainEvent is an event raised by the surrounding product (lead creation,
// task completion, ...). The engine evaluates triggers against its payload.
// The engine does not deduplicate redelivered events; producers own
// idempotency keys.
type DomainEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewDomainEvent builds an event envelope with a fresh ID and timestamp.
func NewDomainEvent(eventType, tenantID string, payload map[string]any) DomainEvent {
	return DomainEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		TenantID:   tenantID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

func (e DomainEvent) GetType() EventType {
	return DomainEventReceived
}

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	TenantID     string    `json:"tenant_id"`
	DefinitionID string    `json:"definition_id"`
	InstanceID   string    `json:"instance_id"`
}

type InstanceStarted struct {
	BaseEvent

	TriggerType string         `json:"trigger_type"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e InstanceStarted) GetType() EventType {
	return InstanceStartedEvent
}

type InstanceCompleted struct {
	BaseEvent

	ExecutedActions int           `json:"executed_actions"`
	Duration        time.Duration `json:"duration"`
}

func (e InstanceCompleted) GetType() EventType {
	return InstanceCompletedEvent
}

type InstanceFailed struct {
	BaseEvent

	ExecutedActions int           `json:"executed_actions"`
	FailedActions   int           `json:"failed_actions"`
	Duration        time.Duration `json:"duration"`
}

func (e InstanceFailed) GetType() EventType {
	return InstanceFailedEvent
}

type InstanceCancelled struct {
	BaseEvent
}

func (e InstanceCancelled) GetType() EventType {
	return InstanceCancelledEvent
}

type ActionSucceeded struct {
	BaseEvent

	ActionID   string        `json:"action_id"`
	ActionType string        `json:"action_type"`
	Duration   time.Duration `json:"duration"`
}

func (e ActionSucceeded) GetType() EventType {
	return ActionSucceededEvent
}

type ActionFailed struct {
	BaseEvent

	ActionID   string `json:"action_id"`
	ActionType string `json:"action_type"`
	Error      string `json:"error"`
	RetryCount int    `json:"retry_count"`
}

func (e ActionFailed) GetType() EventType {
	return ActionFailedEvent
}

// CommandIssued asks the surrounding product to perform a side effect on
// behalf of a workflow action, such as creating a task or sending an email.
type CommandIssued struct {
	BaseEvent

	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (e CommandIssued) GetType() EventType {
	return CommandIssuedEvent
}

// NewCommandIssued builds a command event attributed to a workflow instance.
func NewCommandIssued(tenantID, definitionID, instanceID, command string, parameters map[string]any) CommandIssued {
	return CommandIssued{
		BaseEvent: BaseEvent{
			ID:           uuid.New().String(),
			Type:         CommandIssuedEvent,
			Timestamp:    time.Now().UTC(),
			TenantID:     tenantID,
			DefinitionID: definitionID,
			InstanceID:   instanceID,
		},
		Command:    command,
		Parameters: parameters,
	}
}
