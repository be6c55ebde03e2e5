// Package engine runs workflow instances: it schedules actions in order,
// applies per-action delays, retries transient failures, and tracks progress
// and cancellation.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/protocol"
	"github.com/vyomtech/automation/pkg/registry"
)

// RetryPolicy bounds how often a failing action is attempted. Backoff doubles
// per attempt up to MaxBackoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Executor runs a single action through its handler, retrying per policy.
type Executor struct {
	registry *registry.Registry
	policy   RetryPolicy
	logger   *slog.Logger
}

func NewExecutor(logger *slog.Logger, reg *registry.Registry, policy RetryPolicy) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	return &Executor{
		registry: reg,
		policy:   policy,
		logger:   logger.With("module", "executor"),
	}
}

// Execute runs one action and returns the handler result and the number of
// handler attempts made. Errors not marked with
// protocol.NewNonRetryableError are treated as transient and retried until
// the policy is exhausted, in which case the count equals MaxAttempts.
func (e *Executor) Execute(ctx context.Context, action *models.ActionDefinition, execCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, int, error) {
	handler, err := e.registry.CreateAction(action.ActionType, action.ActionConfig)
	if err != nil {
		return nil, 0, protocol.NewNonRetryableError(err)
	}

	var lastErr error

	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.backoff(ctx, attempt); err != nil {
				return nil, attempt, err
			}
		}

		result, err := handler.Execute(ctx, execCtx, logger)
		if err == nil {
			return result, attempt + 1, nil
		}

		lastErr = err

		if !protocol.IsRetryable(err) {
			logger.Warn("Action failed permanently",
				"action_id", action.ID,
				"action_type", action.ActionType,
				"attempt", attempt+1,
				"error", err)

			return nil, attempt + 1, err
		}

		logger.Warn("Action attempt failed",
			"action_id", action.ID,
			"action_type", action.ActionType,
			"attempt", attempt+1,
			"max_attempts", e.policy.MaxAttempts,
			"error", err)
	}

	return nil, e.policy.MaxAttempts, lastErr
}

func (e *Executor) backoff(ctx context.Context, attempt int) error {
	delay := e.policy.BaseBackoff << (attempt - 1)
	if e.policy.MaxBackoff > 0 && delay > e.policy.MaxBackoff {
		delay = e.policy.MaxBackoff
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
