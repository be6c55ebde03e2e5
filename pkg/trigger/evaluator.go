// Package trigger matches incoming domain events against workflow
// definitions.
package trigger

import (
	"log/slog"

	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
)

// Evaluator decides which definitions an event starts. Evaluation is free of
// side effects and safe to run concurrently for independent events.
type Evaluator struct {
	logger *slog.Logger
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{
		logger: logger.With("module", "trigger_evaluator"),
	}
}

// Match returns the definitions the event fires: disabled definitions never
// match; within a definition, any trigger may match (OR); within a trigger,
// every condition must hold (AND). A condition referencing a missing payload
// field means the trigger does not match; it is not a fault.
func (e *Evaluator) Match(event events.DomainEvent, definitions []*models.WorkflowDefinition) []*models.WorkflowDefinition {
	matched := make([]*models.WorkflowDefinition, 0)

	for _, def := range definitions {
		if !def.Enabled {
			continue
		}

		if e.matchDefinition(event, def) {
			matched = append(matched, def)
		}
	}

	e.logger.Debug("Evaluated trigger event",
		"event_type", event.Type,
		"tenant_id", event.TenantID,
		"definitions_checked", len(definitions),
		"matches", len(matched))

	return matched
}

func (e *Evaluator) matchDefinition(event events.DomainEvent, def *models.WorkflowDefinition) bool {
	for _, trig := range def.Triggers {
		if trig.TriggerType != event.Type {
			continue
		}

		if e.matchConditions(event, def.ID, trig) {
			return true
		}
	}

	return false
}

func (e *Evaluator) matchConditions(event events.DomainEvent, definitionID string, trig *models.TriggerDefinition) bool {
	for _, condition := range trig.Conditions {
		ok, err := condition.Matches(event.Payload)
		if err != nil {
			e.logger.Debug("Condition evaluation treated as non-match",
				"definition_id", definitionID,
				"field", condition.Field,
				"error", err)

			return false
		}

		if !ok {
			return false
		}
	}

	return true
}
