package task

import (
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/protocol"
)

type ActionFactory struct {
	publisher eventbus.EventPublisher
}

func NewActionFactory(publisher eventbus.EventPublisher) *ActionFactory {
	return &ActionFactory{publisher: publisher}
}

func (f *ActionFactory) ID() string {
	return "create_task"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.ActionHandler, error) {
	return NewAction(f.publisher, config)
}

func (f *ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Create Task",
		Properties: map[string]*models.Property{
			"title": {
				Type:        "string",
				Description: "Title of the task to create",
			},
			"description": {
				Type:        "string",
				Description: "Longer description shown on the task",
			},
			"assignee_id": {
				Type:        "string",
				Description: "User the task is assigned to",
			},
			"priority": {
				Type:        "string",
				Description: "Task priority",
				Default:     "medium",
				Enum:        []any{"low", "medium", "high"},
			},
			"due_in_days": {
				Type:        "integer",
				Description: "Days from now until the task is due",
				Default:     0,
			},
		},
		Required: []string{"title"},
	}
}
