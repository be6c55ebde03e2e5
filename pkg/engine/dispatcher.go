package engine

import (
	"context"
	"log/slog"

	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/persistence"
	"github.com/vyomtech/automation/pkg/trigger"
)

// Dispatcher routes incoming domain events to the workflow definitions they
// trigger. One event may start several instances; one instance per matching
// definition.
type Dispatcher struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	evaluator   *trigger.Evaluator
	scheduler   *Scheduler
}

func NewDispatcher(logger *slog.Logger, p persistence.Persistence, evaluator *trigger.Evaluator, scheduler *Scheduler) *Dispatcher {
	return &Dispatcher{
		logger:      logger.With("module", "dispatcher"),
		persistence: p,
		evaluator:   evaluator,
		scheduler:   scheduler,
	}
}

// OnEvent evaluates one domain event and starts an instance per matching
// definition. A failure to start one instance does not block the others.
func (d *Dispatcher) OnEvent(ctx context.Context, event events.DomainEvent) error {
	if event.Type == events.ManualTriggerType {
		return d.manualTrigger(ctx, event)
	}

	definitions, err := d.persistence.Definitions().ListEnabledByTriggerType(ctx, event.TenantID, event.Type)
	if err != nil {
		return err
	}

	matched := d.evaluator.Match(event, definitions)

	for _, def := range matched {
		instance, err := d.scheduler.Start(ctx, def, event.Type, event.Payload)
		if err != nil {
			d.logger.Error("Failed to start instance for event",
				"event_id", event.ID,
				"event_type", event.Type,
				"definition_id", def.ID,
				"error", err)

			continue
		}

		d.logger.Info("Event started instance",
			"event_id", event.ID,
			"event_type", event.Type,
			"definition_id", def.ID,
			"instance_id", instance.ID)
	}

	return nil
}

// manualTrigger starts the requested definition directly, without condition
// evaluation. Disabled definitions are never started.
func (d *Dispatcher) manualTrigger(ctx context.Context, event events.DomainEvent) error {
	definitionID, _ := event.Payload["definition_id"].(string)
	if definitionID == "" {
		d.logger.Warn("Manual trigger without definition_id", "event_id", event.ID)

		return nil
	}

	def, err := d.persistence.Definitions().GetByID(ctx, definitionID)
	if err != nil {
		return err
	}

	if def.TenantID != event.TenantID {
		d.logger.Warn("Manual trigger tenant mismatch", "event_id", event.ID, "definition_id", definitionID)

		return nil
	}

	if !def.Enabled {
		d.logger.Warn("Manual trigger for disabled definition", "definition_id", definitionID)

		return nil
	}

	triggerData, _ := event.Payload["trigger_data"].(map[string]any)

	triggeredBy, _ := event.Payload["triggered_by"].(string)
	if triggeredBy == "" {
		triggeredBy = "manual"
	}

	instance, err := d.scheduler.Start(ctx, def, triggeredBy, triggerData)
	if err != nil {
		return err
	}

	d.logger.Info("Manual trigger started instance",
		"definition_id", definitionID,
		"instance_id", instance.ID)

	return nil
}
