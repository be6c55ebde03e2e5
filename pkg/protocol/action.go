// Package protocol defines the contracts between the engine and its pluggable
// collaborators: action handlers and event sources.
package protocol

import (
	"context"
	"log/slog"

	"github.com/vyomtech/automation/pkg/models"
)

// ActionHandler performs the side effect for one action type. Implementations
// must bound their own execution time; the engine treats a handler timeout as
// a retryable failure. Handlers that are not idempotent must return
// non-retryable errors.
type ActionHandler interface {
	Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error)
}

// ActionHandlerFactory builds a handler from an action's configuration map.
type ActionHandlerFactory interface {
	Create(config map[string]any) (ActionHandler, error)
	ID() string
	Schema() *models.JSONSchema
}
