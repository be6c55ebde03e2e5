// Package lead implements the update_lead action: it patches fields on the
// lead the triggering event refers to.
package lead

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
	ErrFieldsRequired = errors.New("missing or invalid 'fields' in configuration")
	ErrLeadRequired   = errors.New("missing 'lead_id' and no 'lead_id' in trigger data")
)

type Action struct {
	LeadID string
	Fields map[string]any

	publisher eventbus.EventPublisher
}

func NewAction(publisher eventbus.EventPublisher, config map[string]any) (*Action, error) {
	fields, ok := config["fields"].(map[string]any)
	if !ok || len(fields) == 0 {
		return nil, ErrFieldsRequired
	}

	leadID, _ := config["lead_id"].(string)

	return &Action{
		LeadID:    leadID,
		Fields:    fields,
		publisher: publisher,
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "update_lead")

	leadID := a.LeadID
	if leadID == "" {
		leadID, _ = executionCtx.TriggerData["lead_id"].(string)
	}

	if leadID == "" {
		return nil, protocol.NewNonRetryableError(ErrLeadRequired)
	}

	parameters := map[string]any{
		"lead_id": leadID,
		"fields":  a.Fields,
	}

	event := events.NewCommandIssued(executionCtx.TenantID, executionCtx.DefinitionID, executionCtx.InstanceID, "update_lead", parameters)
	if err := a.publisher.Publish(ctx, executionCtx.InstanceID, event); err != nil {
		return nil, fmt.Errorf("failed to publish update_lead command: %w", err)
	}

	logger.InfoContext(ctx, "Lead update requested", "lead_id", leadID, "fields", len(a.Fields))

	return map[string]any{
		"lead_id":        leadID,
		"updated_fields": len(a.Fields),
	}, nil
}
