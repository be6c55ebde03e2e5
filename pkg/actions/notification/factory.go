package notification

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
	return "send_notification"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.ActionHandler, error) {
	return NewAction(f.publisher, config)
}

func (f *ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Send Notification",
		Properties: map[string]*models.Property{
			"user_id": {
				Type:        "string",
				Description: "Recipient user. Falls back to the 'owner_id' field of the trigger data when empty.",
			},
			"title": {
				Type:        "string",
				Description: "Notification title",
			},
			"message": {
				Type:        "string",
				Description: "Notification body",
			},
			"channel": {
				Type:        "string",
				Description: "Delivery channel",
				Default:     "in_app",
				Enum:        []any{"in_app", "push", "slack"},
			},
		},
		Required: []string{"title"},
	}
}
