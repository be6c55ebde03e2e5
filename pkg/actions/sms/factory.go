package sms

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
	return "send_sms"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.ActionHandler, error) {
	return NewAction(f.publisher, config)
}

func (f *ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Send SMS",
		Properties: map[string]*models.Property{
			"phone": {
				Type:        "string",
				Description: "Recipient phone number. Falls back to the 'phone' field of the trigger data when empty.",
			},
			"message": {
				Type:        "string",
				Description: "Message text",
			},
		},
		Required: []string{"message"},
	}
}
