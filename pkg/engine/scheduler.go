package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/persistence"
)

// Scheduler creates workflow instances and drives their run loops. Each
// instance runs in its own goroutine against a snapshot of the definition,
// so concurrent definition edits never affect a run in flight.
type Scheduler struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	executor    *Executor
	tracker     *Tracker
	eventBus    eventbus.EventBus

	wg sync.WaitGroup
}

func NewScheduler(logger *slog.Logger, p persistence.Persistence, executor *Executor, tracker *Tracker, eventBus eventbus.EventBus) *Scheduler {
	return &Scheduler{
		logger:      logger.With("module", "scheduler"),
		persistence: p,
		executor:    executor,
		tracker:     tracker,
		eventBus:    eventBus,
	}
}

// Start creates an instance of the definition and launches its run loop. The
// returned instance is the initial pending state; execution proceeds
// asynchronously. The context should outlive the run, typically the worker's
// lifetime context.
func (s *Scheduler) Start(ctx context.Context, def *models.WorkflowDefinition, triggeredBy string, triggerData map[string]any) (*models.WorkflowInstance, error) {
	snapshot := def.Snapshot()
	now := time.Now().UTC()

	instance := &models.WorkflowInstance{
		ID:           uuid.New().String(),
		DefinitionID: snapshot.ID,
		TenantID:     snapshot.TenantID,
		Status:       models.InstanceStatusPending,
		TriggeredBy:  triggeredBy,
		TriggerData:  triggerData,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, action := range snapshot.SortedActions() {
		instance.ActionExecutions = append(instance.ActionExecutions, &models.ActionExecution{
			ID:         uuid.New().String(),
			ActionID:   action.ID,
			ActionType: action.ActionType,
			Status:     models.ExecutionStatusPending,
		})
	}

	if err := s.persistence.Instances().Create(ctx, instance); err != nil {
		return nil, err
	}

	flag := s.tracker.register(instance.ID)

	s.wg.Add(1)

	go s.run(ctx, snapshot, instance.Clone(), flag)

	s.logger.Info("Instance scheduled",
		"instance_id", instance.ID,
		"definition_id", snapshot.ID,
		"triggered_by", triggeredBy,
		"actions", len(instance.ActionExecutions))

	return instance, nil
}

// Drain blocks until every launched run loop has finished.
func (s *Scheduler) Drain() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, def *models.WorkflowDefinition, instance *models.WorkflowInstance, flag *cancelFlag) {
	defer s.wg.Done()
	defer s.tracker.unregister(instance.ID)

	logger := s.logger.With("instance_id", instance.ID, "definition_id", def.ID)

	startedAt := time.Now().UTC()
	instance.Status = models.InstanceStatusRunning
	instance.StartedAt = &startedAt
	s.persist(ctx, instance, logger)

	s.publish(ctx, instance.ID, events.InstanceStarted{
		BaseEvent:   s.baseEvent(events.InstanceStartedEvent, instance),
		TriggerType: instance.TriggeredBy,
		TriggerData: instance.TriggerData,
	}, logger)

	execCtx := models.ExecutionContext{
		InstanceID:    instance.ID,
		DefinitionID:  def.ID,
		TenantID:      instance.TenantID,
		TriggerType:   instance.TriggeredBy,
		TriggerData:   instance.TriggerData,
		ActionResults: make(map[string]any),
	}

	halted := false

	for _, action := range def.SortedActions() {
		if done := s.checkCancelled(ctx, instance, flag, logger); done {
			return
		}

		exec := instance.ExecutionByActionID(action.ID)
		if exec == nil {
			continue
		}

		if action.DelaySeconds > 0 {
			exec.Status = models.ExecutionStatusWaiting
			s.persist(ctx, instance, logger)

			if err := s.delay(ctx, time.Duration(action.DelaySeconds)*time.Second, flag); err != nil {
				s.finalizeCancelled(ctx, instance, logger, true)

				return
			}

			if done := s.checkCancelled(ctx, instance, flag, logger); done {
				return
			}
		}

		s.runAction(ctx, instance, action, exec, execCtx, logger)

		if exec.Status == models.ExecutionStatusFailed && action.HaltOnFailure {
			halted = true

			break
		}
	}

	if done := s.checkCancelled(ctx, instance, flag, logger); done {
		return
	}

	s.finalize(ctx, instance, halted, logger)
}

func (s *Scheduler) runAction(ctx context.Context, instance *models.WorkflowInstance, action *models.ActionDefinition, exec *models.ActionExecution, execCtx models.ExecutionContext, logger *slog.Logger) {
	started := time.Now().UTC()
	exec.Status = models.ExecutionStatusRunning
	exec.StartedAt = &started
	s.persist(ctx, instance, logger)

	result, attempts, err := s.executor.Execute(ctx, action, execCtx, logger)

	completed := time.Now().UTC()
	exec.RetryCount = attempts
	exec.CompletedAt = &completed

	if err != nil {
		exec.Status = models.ExecutionStatusFailed
		exec.ErrorMessage = err.Error()
		instance.RecomputeProgress()
		s.persist(ctx, instance, logger)

		s.publish(ctx, instance.ID, events.ActionFailed{
			BaseEvent:  s.baseEvent(events.ActionFailedEvent, instance),
			ActionID:   action.ID,
			ActionType: action.ActionType,
			Error:      err.Error(),
			RetryCount: attempts,
		}, logger)

		return
	}

	exec.Status = models.ExecutionStatusSucceeded
	exec.Result = result
	execCtx.ActionResults[action.ID] = result
	instance.RecomputeProgress()
	s.persist(ctx, instance, logger)

	s.publish(ctx, instance.ID, events.ActionSucceeded{
		BaseEvent:  s.baseEvent(events.ActionSucceededEvent, instance),
		ActionID:   action.ID,
		ActionType: action.ActionType,
		Duration:   completed.Sub(started),
	}, logger)
}

// checkCancelled observes both the local flag and a store-side cancellation
// performed by another process. It finalizes the instance when cancelled.
func (s *Scheduler) checkCancelled(ctx context.Context, instance *models.WorkflowInstance, flag *cancelFlag, logger *slog.Logger) bool {
	if flag.isSet() {
		s.finalizeCancelled(ctx, instance, logger, true)

		return true
	}

	stored, err := s.persistence.Instances().GetByID(ctx, instance.ID)
	if err != nil {
		logger.Warn("Failed to refresh instance state", "error", err)

		return false
	}

	if stored.Status == models.InstanceStatusCancelled {
		// Already marked and announced by the canceller; just stop and record
		// the work done so far.
		s.finalizeCancelled(ctx, instance, logger, false)

		return true
	}

	return false
}

func (s *Scheduler) finalizeCancelled(ctx context.Context, instance *models.WorkflowInstance, logger *slog.Logger, announce bool) {
	now := time.Now().UTC()
	instance.Status = models.InstanceStatusCancelled
	instance.CompletedAt = &now

	for _, exec := range instance.ActionExecutions {
		if !exec.Status.Terminal() {
			exec.Status = models.ExecutionStatusCancelled
		}
	}

	instance.RecomputeProgress()
	s.persist(ctx, instance, logger)

	if announce {
		s.publish(ctx, instance.ID, events.InstanceCancelled{
			BaseEvent: s.baseEvent(events.InstanceCancelledEvent, instance),
		}, logger)
	}

	logger.Info("Instance cancelled",
		"executed_actions", instance.ExecutedActions,
		"progress", instance.ProgressPercentage)
}

func (s *Scheduler) finalize(ctx context.Context, instance *models.WorkflowInstance, halted bool, logger *slog.Logger) {
	now := time.Now().UTC()
	instance.CompletedAt = &now

	if halted {
		for _, exec := range instance.ActionExecutions {
			if !exec.Status.Terminal() {
				exec.Status = models.ExecutionStatusCancelled
			}
		}
	}

	instance.RecomputeProgress()

	duration := time.Duration(0)
	if instance.StartedAt != nil {
		duration = now.Sub(*instance.StartedAt)
	}

	if instance.FailedActions > 0 {
		instance.Status = models.InstanceStatusFailed
		s.persist(ctx, instance, logger)

		s.publish(ctx, instance.ID, events.InstanceFailed{
			BaseEvent:       s.baseEvent(events.InstanceFailedEvent, instance),
			ExecutedActions: instance.ExecutedActions,
			FailedActions:   instance.FailedActions,
			Duration:        duration,
		}, logger)

		logger.Warn("Instance failed",
			"executed_actions", instance.ExecutedActions,
			"failed_actions", instance.FailedActions)

		return
	}

	instance.Status = models.InstanceStatusCompleted
	s.persist(ctx, instance, logger)

	s.publish(ctx, instance.ID, events.InstanceCompleted{
		BaseEvent:       s.baseEvent(events.InstanceCompletedEvent, instance),
		ExecutedActions: instance.ExecutedActions,
		Duration:        duration,
	}, logger)

	logger.Info("Instance completed",
		"executed_actions", instance.ExecutedActions,
		"duration", duration)
}

// delay waits out an action's configured delay. It returns an error when the
// wait was interrupted by cancellation or shutdown.
func (s *Scheduler) delay(ctx context.Context, d time.Duration, flag *cancelFlag) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-flag.done:
		return context.Canceled
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) persist(ctx context.Context, instance *models.WorkflowInstance, logger *slog.Logger) {
	instance.UpdatedAt = time.Now().UTC()

	if err := s.persistence.Instances().Update(ctx, instance); err != nil {
		logger.Error("Failed to persist instance state", "status", instance.Status, "error", err)
	}
}

func (s *Scheduler) publish(ctx context.Context, key string, event eventbus.Event, logger *slog.Logger) {
	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		logger.Warn("Failed to publish lifecycle event", "event_type", event.GetType(), "error", err)
	}
}

func (s *Scheduler) baseEvent(eventType events.EventType, instance *models.WorkflowInstance) events.BaseEvent {
	return events.BaseEvent{
		ID:           s.eventBus.GenerateID(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		TenantID:     instance.TenantID,
		DefinitionID: instance.DefinitionID,
		InstanceID:   instance.ID,
	}
}
