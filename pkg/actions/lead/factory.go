package lead

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
	return "update_lead"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.ActionHandler, error) {
	return NewAction(f.publisher, config)
}

func (f *ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Update Lead",
		Properties: map[string]*models.Property{
			"lead_id": {
				Type:        "string",
				Description: "Lead to update. Falls back to the 'lead_id' field of the trigger data when empty.",
			},
			"fields": {
				Type:        "object",
				Description: "Field values to set on the lead, e.g. {\"status\": \"qualified\"}",
			},
		},
		Required: []string{"fields"},
	}
}
