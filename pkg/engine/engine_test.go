package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyomtech/automation/pkg/engine"
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/persistence"
	"github.com/vyomtech/automation/pkg/persistence/file"
	"github.com/vyomtech/automation/pkg/protocol"
	"github.com/vyomtech/automation/pkg/registry"
	"github.com/vyomtech/automation/pkg/trigger"
)

// stubFactory builds handlers that delegate to a test-provided function,
// keyed by the "label" config entry.
type stubFactory struct {
	id string
	fn func(ctx context.Context, label string) (map[string]any, error)
}

func (f *stubFactory) ID() string { return f.id }

func (f *stubFactory) Schema() *models.JSONSchema { return nil }

func (f *stubFactory) Create(config map[string]any) (protocol.ActionHandler, error) {
	label, _ := config["label"].(string)

	return &stubHandler{fn: f.fn, label: label}, nil
}

type stubHandler struct {
	fn    func(ctx context.Context, label string) (map[string]any, error)
	label string
}

func (h *stubHandler) Execute(ctx context.Context, _ models.ExecutionContext, _ *slog.Logger) (map[string]any, error) {
	return h.fn(ctx, h.label)
}

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu        sync.Mutex
	published []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, event)

	return nil
}

func (b *recordingBus) Handle(_ events.EventType, _ eventbus.EventHandler) error { return nil }

func (b *recordingBus) Subscribe(_ context.Context) error { return nil }

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) GenerateID() string { return uuid.New().String() }

func (b *recordingBus) eventTypes() []events.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()

	types := make([]events.EventType, 0, len(b.published))
	for _, event := range b.published {
		types = append(types, event.GetType())
	}

	return types
}

func containsEventType(types []events.EventType, want events.EventType) bool {
	for _, eventType := range types {
		if eventType == want {
			return true
		}
	}

	return false
}

type testEngine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	bus         *recordingBus
	tracker     *engine.Tracker
	scheduler   *engine.Scheduler
	dispatcher  *engine.Dispatcher
}

func fastRetryPolicy() engine.RetryPolicy {
	return engine.RetryPolicy{MaxAttempts: 3, BaseBackoff: 2 * time.Millisecond, MaxBackoff: 10 * time.Millisecond}
}

func setupEngine(t *testing.T, fn func(ctx context.Context, label string) (map[string]any, error)) *testEngine {
	t.Helper()

	logger := slog.Default()
	p := file.NewPersistence(t.TempDir())
	bus := &recordingBus{}

	reg := registry.NewRegistry(logger)
	reg.RegisterAction(&stubFactory{id: "test_step", fn: fn})

	tracker := engine.NewTracker(logger, p, bus)
	executor := engine.NewExecutor(logger, reg, fastRetryPolicy())
	scheduler := engine.NewScheduler(logger, p, executor, tracker, bus)
	dispatcher := engine.NewDispatcher(logger, p, trigger.NewEvaluator(logger), scheduler)

	return &testEngine{
		persistence: p,
		registry:    reg,
		bus:         bus,
		tracker:     tracker,
		scheduler:   scheduler,
		dispatcher:  dispatcher,
	}
}

func testDefinition(labels ...string) *models.WorkflowDefinition {
	def := &models.WorkflowDefinition{
		ID:       uuid.New().String(),
		TenantID: "tenant-1",
		Name:     "test workflow",
		Enabled:  true,
		Triggers: []*models.TriggerDefinition{
			{ID: uuid.New().String(), TriggerType: models.TriggerTypeLeadCreated},
		},
	}

	for i, label := range labels {
		def.Actions = append(def.Actions, &models.ActionDefinition{
			ID:           uuid.New().String(),
			ActionType:   "test_step",
			ActionConfig: map[string]any{"label": label},
			ActionOrder:  i + 1,
		})
	}

	return def
}

func waitTerminal(t *testing.T, e *testEngine, instanceID string) *models.WorkflowInstance {
	t.Helper()

	require.Eventually(t, func() bool {
		instance, err := e.persistence.Instances().GetByID(context.Background(), instanceID)

		return err == nil && instance.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	instance, err := e.persistence.Instances().GetByID(context.Background(), instanceID)
	require.NoError(t, err)

	return instance
}

func TestSchedulerRunsActionsInOrder(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		labels []string
	)

	e := setupEngine(t, func(_ context.Context, label string) (map[string]any, error) {
		mu.Lock()
		labels = append(labels, label)
		mu.Unlock()

		return map[string]any{"label": label}, nil
	})

	def := testDefinition("one", "two", "three")
	// Declared out of order; execution follows action_order.
	def.Actions[0].ActionOrder = 2
	def.Actions[1].ActionOrder = 1
	def.Actions[2].ActionOrder = 3

	instance, err := e.scheduler.Start(context.Background(), def, models.TriggerTypeLeadCreated, nil)
	require.NoError(t, err)

	final := waitTerminal(t, e, instance.ID)

	assert.Equal(t, models.InstanceStatusCompleted, final.Status)
	assert.Equal(t, 3, final.ExecutedActions)
	assert.Equal(t, 0, final.FailedActions)
	assert.Equal(t, 100, final.ProgressPercentage)
	assert.NotNil(t, final.CompletedAt)

	mu.Lock()
	assert.Equal(t, []string{"two", "one", "three"}, labels)
	mu.Unlock()

	require.Eventually(t, func() bool {
		types := e.bus.eventTypes()

		return len(types) > 0 && types[len(types)-1] == events.InstanceCompletedEvent
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, e.bus.eventTypes(), events.InstanceStartedEvent)
}

func TestSchedulerAppliesActionDelay(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		times []time.Time
	)

	e := setupEngine(t, func(_ context.Context, _ string) (map[string]any, error) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()

		return nil, nil
	})

	def := testDefinition("first", "second")
	def.Actions[1].DelaySeconds = 1

	instance, err := e.scheduler.Start(context.Background(), def, models.TriggerTypeLeadCreated, nil)
	require.NoError(t, err)

	final := waitTerminal(t, e, instance.ID)
	assert.Equal(t, models.InstanceStatusCompleted, final.Status)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), time.Second)
}

func TestSchedulerContinuesAfterFailedAction(t *testing.T) {
	t.Parallel()

	e := setupEngine(t, func(_ context.Context, label string) (map[string]any, error) {
		if label == "broken" {
			return nil, errors.New("downstream unavailable")
		}

		return nil, nil
	})

	def := testDefinition("broken", "after")

	instance, err := e.scheduler.Start(context.Background(), def, models.TriggerTypeLeadCreated, nil)
	require.NoError(t, err)

	final := waitTerminal(t, e, instance.ID)

	assert.Equal(t, models.InstanceStatusFailed, final.Status)
	assert.Equal(t, 1, final.ExecutedActions)
	assert.Equal(t, 1, final.FailedActions)
	assert.Equal(t, 100, final.ProgressPercentage)

	broken := final.ExecutionByActionID(def.Actions[0].ID)
	require.NotNil(t, broken)
	assert.Equal(t, models.ExecutionStatusFailed, broken.Status)
	assert.Equal(t, 3, broken.RetryCount)
	assert.Contains(t, broken.ErrorMessage, "downstream unavailable")

	after := final.ExecutionByActionID(def.Actions[1].ID)
	require.NotNil(t, after)
	assert.Equal(t, models.ExecutionStatusSucceeded, after.Status)

	require.Eventually(t, func() bool {
		types := e.bus.eventTypes()

		return containsEventType(types, events.ActionFailedEvent) &&
			containsEventType(types, events.InstanceFailedEvent)
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerHaltOnFailure(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		labels []string
	)

	e := setupEngine(t, func(_ context.Context, label string) (map[string]any, error) {
		mu.Lock()
		labels = append(labels, label)
		mu.Unlock()

		if label == "guard" {
			return nil, protocol.NewNonRetryableError(errors.New("precondition failed"))
		}

		return nil, nil
	})

	def := testDefinition("guard", "after")
	def.Actions[0].HaltOnFailure = true

	instance, err := e.scheduler.Start(context.Background(), def, models.TriggerTypeLeadCreated, nil)
	require.NoError(t, err)

	final := waitTerminal(t, e, instance.ID)

	assert.Equal(t, models.InstanceStatusFailed, final.Status)
	assert.Equal(t, 1, final.FailedActions)

	after := final.ExecutionByActionID(def.Actions[1].ID)
	require.NotNil(t, after)
	assert.Equal(t, models.ExecutionStatusCancelled, after.Status)

	mu.Lock()
	assert.Equal(t, []string{"guard"}, labels)
	mu.Unlock()
}

func TestTrackerCancelLetsRunningActionFinish(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})

	var once sync.Once

	e := setupEngine(t, func(_ context.Context, label string) (map[string]any, error) {
		if label == "slow" {
			once.Do(func() { close(started) })
			<-release
		}

		return map[string]any{"label": label}, nil
	})

	def := testDefinition("slow", "never")

	instance, err := e.scheduler.Start(context.Background(), def, models.TriggerTypeLeadCreated, nil)
	require.NoError(t, err)

	<-started

	require.NoError(t, e.tracker.Cancel(context.Background(), instance.ID))
	close(release)

	final := waitTerminal(t, e, instance.ID)

	assert.Equal(t, models.InstanceStatusCancelled, final.Status)

	// The running action finished naturally; the pending one never started.
	slow := final.ExecutionByActionID(def.Actions[0].ID)
	require.NotNil(t, slow)
	assert.Equal(t, models.ExecutionStatusSucceeded, slow.Status)

	never := final.ExecutionByActionID(def.Actions[1].ID)
	require.NotNil(t, never)
	assert.Equal(t, models.ExecutionStatusCancelled, never.Status)

	assert.Equal(t, 50, final.ProgressPercentage)

	require.Eventually(t, func() bool {
		return containsEventType(e.bus.eventTypes(), events.InstanceCancelledEvent)
	}, time.Second, 10*time.Millisecond)
}

func TestTrackerCancelTerminalInstance(t *testing.T) {
	t.Parallel()

	e := setupEngine(t, func(_ context.Context, _ string) (map[string]any, error) {
		return nil, nil
	})

	now := time.Now().UTC()
	instance := &models.WorkflowInstance{
		ID:           uuid.New().String(),
		DefinitionID: uuid.New().String(),
		TenantID:     "tenant-1",
		Status:       models.InstanceStatusCompleted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.persistence.Instances().Create(context.Background(), instance))

	err := e.tracker.Cancel(context.Background(), instance.ID)
	require.ErrorIs(t, err, engine.ErrInstanceTerminal)
}

func TestTrackerCancelIdleInstanceMarksStore(t *testing.T) {
	t.Parallel()

	e := setupEngine(t, func(_ context.Context, _ string) (map[string]any, error) {
		return nil, nil
	})

	now := time.Now().UTC()
	instance := &models.WorkflowInstance{
		ID:           uuid.New().String(),
		DefinitionID: uuid.New().String(),
		TenantID:     "tenant-1",
		Status:       models.InstanceStatusPending,
		ActionExecutions: []*models.ActionExecution{
			{ID: uuid.New().String(), ActionID: "a-1", Status: models.ExecutionStatusPending},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.persistence.Instances().Create(context.Background(), instance))

	require.NoError(t, e.tracker.Cancel(context.Background(), instance.ID))

	stored, err := e.persistence.Instances().GetByID(context.Background(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCancelled, stored.Status)
	assert.Equal(t, models.ExecutionStatusCancelled, stored.ActionExecutions[0].Status)
	assert.Contains(t, e.bus.eventTypes(), events.InstanceCancelledEvent)
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var attempts int

	var mu sync.Mutex

	logger := slog.Default()
	reg := registry.NewRegistry(logger)
	reg.RegisterAction(&stubFactory{id: "test_step", fn: func(_ context.Context, _ string) (map[string]any, error) {
		mu.Lock()
		defer mu.Unlock()

		attempts++
		if attempts < 3 {
			return nil, errors.New("timeout")
		}

		return map[string]any{"ok": true}, nil
	}})

	executor := engine.NewExecutor(logger, reg, fastRetryPolicy())

	action := &models.ActionDefinition{ID: "a-1", ActionType: "test_step", ActionOrder: 1}

	result, made, err := executor.Execute(context.Background(), action, models.ExecutionContext{}, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, made)
	assert.Equal(t, true, result["ok"])
}

func TestExecutorStopsOnNonRetryableError(t *testing.T) {
	t.Parallel()

	var attempts int

	var mu sync.Mutex

	logger := slog.Default()
	reg := registry.NewRegistry(logger)
	reg.RegisterAction(&stubFactory{id: "test_step", fn: func(_ context.Context, _ string) (map[string]any, error) {
		mu.Lock()
		defer mu.Unlock()

		attempts++

		return nil, protocol.NewNonRetryableError(errors.New("bad config"))
	}})

	executor := engine.NewExecutor(logger, reg, fastRetryPolicy())

	action := &models.ActionDefinition{ID: "a-1", ActionType: "test_step", ActionOrder: 1}

	_, made, err := executor.Execute(context.Background(), action, models.ExecutionContext{}, logger)
	require.Error(t, err)
	assert.Equal(t, 1, made)

	mu.Lock()
	assert.Equal(t, 1, attempts)
	mu.Unlock()
}

func TestExecutorReportsAttemptsWhenExhausted(t *testing.T) {
	t.Parallel()

	var attempts int

	var mu sync.Mutex

	logger := slog.Default()
	reg := registry.NewRegistry(logger)
	reg.RegisterAction(&stubFactory{id: "test_step", fn: func(_ context.Context, _ string) (map[string]any, error) {
		mu.Lock()
		defer mu.Unlock()

		attempts++

		return nil, errors.New("timeout")
	}})

	executor := engine.NewExecutor(logger, reg, fastRetryPolicy())

	action := &models.ActionDefinition{ID: "a-1", ActionType: "test_step", ActionOrder: 1}

	_, made, err := executor.Execute(context.Background(), action, models.ExecutionContext{}, logger)
	require.Error(t, err)
	assert.Equal(t, 3, made)

	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestExecutorUnknownActionTypeIsPermanent(t *testing.T) {
	t.Parallel()

	logger := slog.Default()
	executor := engine.NewExecutor(logger, registry.NewRegistry(logger), fastRetryPolicy())

	action := &models.ActionDefinition{ID: "a-1", ActionType: "nope", ActionOrder: 1}

	_, _, err := executor.Execute(context.Background(), action, models.ExecutionContext{}, logger)
	require.Error(t, err)
	assert.False(t, protocol.IsRetryable(err))
}

func TestDispatcherStartsMatchingDefinitions(t *testing.T) {
	t.Parallel()

	e := setupEngine(t, func(_ context.Context, _ string) (map[string]any, error) {
		return nil, nil
	})

	matching := testDefinition("only")
	other := testDefinition("only")
	other.Triggers[0].TriggerType = models.TriggerTypeTaskCompleted

	require.NoError(t, e.persistence.Definitions().Create(context.Background(), matching))
	require.NoError(t, e.persistence.Definitions().Create(context.Background(), other))

	event := events.NewDomainEvent(models.TriggerTypeLeadCreated, "tenant-1", map[string]any{"lead_id": "lead-1"})
	require.NoError(t, e.dispatcher.OnEvent(context.Background(), event))

	require.Eventually(t, func() bool {
		instances, err := e.persistence.Instances().ListByDefinition(context.Background(), matching.ID, persistence.ListInstancesOptions{})

		return err == nil && len(instances) == 1 && instances[0].Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	instances, err := e.persistence.Instances().ListByDefinition(context.Background(), other.ID, persistence.ListInstancesOptions{})
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestDispatcherManualTrigger(t *testing.T) {
	t.Parallel()

	e := setupEngine(t, func(_ context.Context, _ string) (map[string]any, error) {
		return nil, nil
	})

	def := testDefinition("only")
	require.NoError(t, e.persistence.Definitions().Create(context.Background(), def))

	event := events.NewDomainEvent(events.ManualTriggerType, "tenant-1", map[string]any{
		"definition_id": def.ID,
		"trigger_data":  map[string]any{"reason": "test"},
	})
	require.NoError(t, e.dispatcher.OnEvent(context.Background(), event))

	require.Eventually(t, func() bool {
		instances, err := e.persistence.Instances().ListByDefinition(context.Background(), def.ID, persistence.ListInstancesOptions{})

		return err == nil && len(instances) == 1 && instances[0].Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	instances, err := e.persistence.Instances().ListByDefinition(context.Background(), def.ID, persistence.ListInstancesOptions{})
	require.NoError(t, err)
	assert.Equal(t, "manual", instances[0].TriggeredBy)
	assert.Equal(t, "test", instances[0].TriggerData["reason"])
}

func TestDispatcherManualTriggerSkipsDisabledDefinition(t *testing.T) {
	t.Parallel()

	e := setupEngine(t, func(_ context.Context, _ string) (map[string]any, error) {
		return nil, nil
	})

	def := testDefinition("only")
	def.Enabled = false
	require.NoError(t, e.persistence.Definitions().Create(context.Background(), def))

	event := events.NewDomainEvent(events.ManualTriggerType, "tenant-1", map[string]any{"definition_id": def.ID})
	require.NoError(t, e.dispatcher.OnEvent(context.Background(), event))

	time.Sleep(100 * time.Millisecond)

	instances, err := e.persistence.Instances().ListByDefinition(context.Background(), def.ID, persistence.ListInstancesOptions{})
	require.NoError(t, err)
	assert.Empty(t, instances)
}
