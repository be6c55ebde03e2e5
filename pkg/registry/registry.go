// Package registry holds the action handler factories the engine dispatches
// to. Handlers are registered at engine construction; the engine core never
// switches on action types itself.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/vyomtech/automation/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionHandlerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:          logger,
		actionFactories: make(map[string]protocol.ActionHandlerFactory),
	}
}

func (r *Registry) RegisterAction(factory protocol.ActionHandlerFactory) {
	r.actionFactories[factory.ID()] = factory
}

func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.ActionHandler, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	return factory.Create(config)
}

// IsActionRegistered reports whether a handler exists for the action type.
func (r *Registry) IsActionRegistered(actionType string) bool {
	_, ok := r.actionFactories[actionType]

	return ok
}

// ActionTypes returns the registered action types.
func (r *Registry) ActionTypes() []string {
	types := make([]string, 0, len(r.actionFactories))
	for actionType := range r.actionFactories {
		types = append(types, actionType)
	}

	return types
}

// ValidateActionConfig checks an action's configuration against the schema
// its factory declares. Factories without a schema accept any config.
func (r *Registry) ValidateActionConfig(actionType string, config map[string]any) error {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return fmt.Errorf("action type '%s' not registered", actionType)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("schema validation for action type '%s': %w", actionType, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid config for action type '%s': %s", actionType, strings.Join(details, "; "))
	}

	return nil
}

// HealthCheck reports registry readiness for the health endpoint.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.actionFactories) == 0 {
		return "No action handlers registered", false
	}

	return fmt.Sprintf("%d action handlers registered", len(r.actionFactories)), true
}
