package tag

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
	return "add_tag"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.ActionHandler, error) {
	return NewAction(f.publisher, config)
}

func (f *ActionFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Add Tag",
		Properties: map[string]*models.Property{
			"lead_id": {
				Type:        "string",
				Description: "Lead to tag. Falls back to the 'lead_id' field of the trigger data when empty.",
			},
			"tag": {
				Type:        "string",
				Description: "Tag to add",
			},
		},
		Required: []string{"tag"},
	}
}
