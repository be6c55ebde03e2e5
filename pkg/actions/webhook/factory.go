package webhook

import (
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/protocol"
)

type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (f *ActionFactory) ID() string {
	return "send_webhook"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.ActionHandler, error) {
	return NewAction(config)
}

func (f *ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Send Webhook",
		Properties: map[string]*models.Property{
			"url": {
				Type:        "string",
				Description: "Endpoint to deliver the webhook to",
			},
			"method": {
				Type:        "string",
				Description: "HTTP method",
				Default:     "POST",
				Enum:        []any{"POST", "PUT", "PATCH"},
			},
			"headers": {
				Type:        "object",
				Description: "Extra HTTP headers to send",
			},
			"payload": {
				Type:        "object",
				Description: "Static payload merged into the delivery envelope",
			},
			"timeout_seconds": {
				Type:        "integer",
				Description: "Request timeout in seconds",
				Default:     30,
			},
		},
		Required: []string{"url"},
	}
}
