package email

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
	return "send_email"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.ActionHandler, error) {
	return NewAction(f.publisher, config)
}

func (f *ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Send Email",
		Properties: map[string]*models.Property{
			"to": {
				Type:        "string",
				Description: "Recipient address. Falls back to the 'email' field of the trigger data when empty.",
			},
			"subject": {
				Type:        "string",
				Description: "Email subject line",
			},
			"body": {
				Type:        "string",
				Description: "Plain text body",
			},
			"template": {
				Type:        "string",
				Description: "Name of a server-side email template to render instead of the body",
			},
		},
		Required: []string{"subject"},
	}
}
