// Package notification implements the send_notification action: an in-app
// notification delivered to a user of the surrounding product.
package notification

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
	ErrTitleRequired = errors.New("missing or invalid 'title' in configuration")
	ErrUserRequired  = errors.New("missing 'user_id' and no 'owner_id' in trigger data")
)

type Action struct {
	UserID  string
	Title   string
	Message string
	Channel string

	publisher eventbus.EventPublisher
}

func NewAction(publisher eventbus.EventPublisher, config map[string]any) (*Action, error) {
	title, _ := config["title"].(string)
	if title == "" {
		return nil, ErrTitleRequired
	}

	userID, _ := config["user_id"].(string)
	message, _ := config["message"].(string)

	channel, _ := config["channel"].(string)
	if channel == "" {
		channel = "in_app"
	}

	return &Action{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Channel:   channel,
		publisher: publisher,
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "send_notification")

	userID := a.UserID
	if userID == "" {
		userID, _ = executionCtx.TriggerData["owner_id"].(string)
	}

	if userID == "" {
		return nil, protocol.NewNonRetryableError(ErrUserRequired)
	}

	notificationID := uuid.New().String()

	parameters := map[string]any{
		"notification_id": notificationID,
		"user_id":         userID,
		"title":           a.Title,
		"message":         a.Message,
		"channel":         a.Channel,
	}

	event := events.NewCommandIssued(executionCtx.TenantID, executionCtx.DefinitionID, executionCtx.InstanceID, "send_notification", parameters)
	if err := a.publisher.Publish(ctx, executionCtx.InstanceID, event); err != nil {
		return nil, fmt.Errorf("failed to publish send_notification command: %w", err)
	}

	logger.InfoContext(ctx, "Notification requested", "notification_id", notificationID, "user_id", userID)

	return map[string]any{
		"notification_id": notificationID,
		"user_id":         userID,
	}, nil
}
