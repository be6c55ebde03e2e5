// Package sms implements the send_sms action.
package sms

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
	ErrMessageRequired = errors.New("missing or invalid 'message' in configuration")
	ErrPhoneRequired   = errors.New("missing 'phone' and no 'phone' in trigger data")
)

type Action struct {
	Phone   string
	Message string

	publisher eventbus.EventPublisher
}

func NewAction(publisher eventbus.EventPublisher, config map[string]any) (*Action, error) {
	message, _ := config["message"].(string)
	if message == "" {
		return nil, ErrMessageRequired
	}

	phone, _ := config["phone"].(string)

	return &Action{
		Phone:     phone,
		Message:   message,
		publisher: publisher,
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "send_sms")

	phone := a.Phone
	if phone == "" {
		phone, _ = executionCtx.TriggerData["phone"].(string)
	}

	if phone == "" {
		return nil, protocol.NewNonRetryableError(ErrPhoneRequired)
	}

	messageID := uuid.New().String()

	parameters := map[string]any{
		"message_id": messageID,
		"phone":      phone,
		"message":    a.Message,
	}

	event := events.NewCommandIssued(executionCtx.TenantID, executionCtx.DefinitionID, executionCtx.InstanceID, "send_sms", parameters)
	if err := a.publisher.Publish(ctx, executionCtx.InstanceID, event); err != nil {
		return nil, fmt.Errorf("failed to publish send_sms command: %w", err)
	}

	logger.InfoContext(ctx, "SMS requested", "message_id", messageID, "phone", phone)

	return map[string]any{
		"message_id": messageID,
		"phone":      phone,
	}, nil
}
