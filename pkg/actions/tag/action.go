// Package tag implements the add_tag action.
package tag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/protocol"
)

var (
	ErrTagRequired  = errors.New("missing or invalid 'tag' in configuration")
	ErrLeadRequired = errors.New("missing 'lead_id' and no 'lead_id' in trigger data")
)

type Action struct {
	LeadID string
	Tag    string

	publisher eventbus.EventPublisher
}

func NewAction(publisher eventbus.EventPublisher, config map[string]any) (*Action, error) {
	tagName, _ := config["tag"].(string)
	if tagName == "" {
		return nil, ErrTagRequired
	}

	leadID, _ := config["lead_id"].(string)

	return &Action{
		LeadID:    leadID,
		Tag:       tagName,
		publisher: publisher,
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "add_tag")

	leadID := a.LeadID
	if leadID == "" {
		leadID, _ = executionCtx.TriggerData["lead_id"].(string)
	}

	if leadID == "" {
		return nil, protocol.NewNonRetryableError(ErrLeadRequired)
	}

	parameters := map[string]any{
		"lead_id": leadID,
		"tag":     a.Tag,
	}

	event := events.NewCommandIssued(executionCtx.TenantID, executionCtx.DefinitionID, executionCtx.InstanceID, "add_tag", parameters)
	if err := a.publisher.Publish(ctx, executionCtx.InstanceID, event); err != nil {
		return nil, fmt.Errorf("failed to publish add_tag command: %w", err)
	}

	logger.InfoContext(ctx, "Tag requested", "lead_id", leadID, "tag", a.Tag)

	return map[string]any{
		"lead_id": leadID,
		"tag":     a.Tag,
	}, nil
}
