// Package email implements the send_email action.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/protocol"
)

var (
	ErrRecipientRequired = errors.New("missing 'to' and no 'email' in trigger data")
	ErrSubjectRequired   = errors.New("missing or invalid 'subject' in configuration")
)

type Action struct {
	To       string
	Subject  string
	Body     string
	Template string

	publisher eventbus.EventPublisher
}

func NewAction(publisher eventbus.EventPublisher, config map[string]any) (*Action, error) {
	subject, _ := config["subject"].(string)
	if subject == "" {
		return nil, ErrSubjectRequired
	}

	to, _ := config["to"].(string)
	body, _ := config["body"].(string)
	template, _ := config["template"].(string)

	return &Action{
		To:        to,
		Subject:   subject,
		Body:      body,
		Template:  template,
		publisher: publisher,
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "send_email")

	// Recipient may come from the configuration or from the triggering event,
	// e.g. the email of a freshly created lead.
	to := a.To
	if to == "" {
		to, _ = executionCtx.TriggerData["email"].(string)
	}

	if to == "" {
		return nil, protocol.NewNonRetryableError(ErrRecipientRequired)
	}

	messageID := uuid.New().String()

	parameters := map[string]any{
		"message_id": messageID,
		"to":         to,
		"subject":    a.Subject,
		"body":       a.Body,
		"template":   a.Template,
	}

	event := events.NewCommandIssued(executionCtx.TenantID, executionCtx.DefinitionID, executionCtx.InstanceID, "send_email", parameters)
	if err := a.publisher.Publish(ctx, executionCtx.InstanceID, event); err != nil {
		return nil, fmt.Errorf("failed to publish send_email command: %w", err)
	}

	logger.InfoContext(ctx, "Email requested", "message_id", messageID, "to", to, "subject", a.Subject)

	return map[string]any{
		"message_id": messageID,
		"to":         to,
	}, nil
}
