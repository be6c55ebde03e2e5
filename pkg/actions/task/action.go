// Package task implements the create_task action: it asks the surrounding
// product to create a follow-up task for a lead or contact.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
)

var ErrTitleRequired = errors.New("missing or invalid 'title' in configuration")

type Action struct {
	Title       string
	Description string
	AssigneeID  string
	Priority    string
	DueInDays   int

	publisher eventbus.EventPublisher
}

func NewAction(publisher eventbus.EventPublisher, config map[string]any) (*Action, error) {
	title, _ := config["title"].(string)
	if title == "" {
		return nil, ErrTitleRequired
	}

	description, _ := config["description"].(string)
	assigneeID, _ := config["assignee_id"].(string)

	priority, _ := config["priority"].(string)
	if priority == "" {
		priority = "medium"
	}

	dueInDays := 0
	if v, ok := config["due_in_days"].(float64); ok {
		dueInDays = int(v)
	}

	return &Action{
		Title:       title,
		Description: description,
		AssigneeID:  assigneeID,
		Priority:    priority,
		DueInDays:   dueInDays,
		publisher:   publisher,
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "create_task")

	taskID := uuid.New().String()
	dueDate := time.Now().UTC().AddDate(0, 0, a.DueInDays)

	parameters := map[string]any{
		"task_id":     taskID,
		"title":       a.Title,
		"description": a.Description,
		"assignee_id": a.AssigneeID,
		"priority":    a.Priority,
		"due_date":    dueDate.Format(time.RFC3339),
	}

	if leadID, ok := executionCtx.TriggerData["lead_id"].(string); ok {
		parameters["lead_id"] = leadID
	}

	event := events.NewCommandIssued(executionCtx.TenantID, executionCtx.DefinitionID, executionCtx.InstanceID, "create_task", parameters)
	if err := a.publisher.Publish(ctx, executionCtx.InstanceID, event); err != nil {
		return nil, fmt.Errorf("failed to publish create_task command: %w", err)
	}

	logger.InfoContext(ctx, "Task creation requested", "task_id", taskID, "title", a.Title)

	return map[string]any{
		"task_id":  taskID,
		"title":    a.Title,
		"due_date": dueDate.Format(time.RFC3339),
	}, nil
}
