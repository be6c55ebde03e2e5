package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/events"
	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/persistence"
)

// ErrInstanceTerminal is returned when an operation targets an instance that
// already completed, failed, or was cancelled.
var ErrInstanceTerminal = persistence.ErrInstanceTerminal

// cancelFlag signals cooperative cancellation to a running instance's loop.
type cancelFlag struct {
	once sync.Once
	done chan struct{}
}

func newCancelFlag() *cancelFlag {
	return &cancelFlag{done: make(chan struct{})}
}

func (f *cancelFlag) set() {
	f.once.Do(func() { close(f.done) })
}

func (f *cancelFlag) isSet() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Tracker serves instance reads and owns cancellation. Instances running in
// this process are cancelled cooperatively through their flag; instances
// owned elsewhere are marked cancelled in the store, where the owning run
// loop observes the status at the next action boundary.
type Tracker struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus

	mu     sync.Mutex
	active map[string]*cancelFlag
}

func NewTracker(logger *slog.Logger, p persistence.Persistence, eventBus eventbus.EventBus) *Tracker {
	return &Tracker{
		logger:      logger.With("module", "tracker"),
		persistence: p,
		eventBus:    eventBus,
		active:      make(map[string]*cancelFlag),
	}
}

func (t *Tracker) register(instanceID string) *cancelFlag {
	flag := newCancelFlag()

	t.mu.Lock()
	t.active[instanceID] = flag
	t.mu.Unlock()

	return flag
}

func (t *Tracker) unregister(instanceID string) {
	t.mu.Lock()
	delete(t.active, instanceID)
	t.mu.Unlock()
}

func (t *Tracker) activeFlag(instanceID string) *cancelFlag {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.active[instanceID]
}

// Get returns the current state of an instance.
func (t *Tracker) Get(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	return t.persistence.Instances().GetByID(ctx, instanceID)
}

// ListByDefinition returns the instances of a definition, newest first.
func (t *Tracker) ListByDefinition(ctx context.Context, definitionID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	return t.persistence.Instances().ListByDefinition(ctx, definitionID, opts)
}

// Stats returns aggregate instance counts for a definition.
func (t *Tracker) Stats(ctx context.Context, definitionID string) (*persistence.InstanceStats, error) {
	return t.persistence.Instances().Stats(ctx, definitionID)
}

// Cancel requests cancellation of an instance. A currently-running action
// finishes naturally; pending actions never start. Cancelling a terminal
// instance returns ErrInstanceTerminal.
func (t *Tracker) Cancel(ctx context.Context, instanceID string) error {
	instance, err := t.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.Status.Terminal() {
		return ErrInstanceTerminal
	}

	if flag := t.activeFlag(instanceID); flag != nil {
		flag.set()
		t.logger.Info("Cancellation requested", "instance_id", instanceID)

		return nil
	}

	// Not running here. Mark the store; the owning loop, if any, observes the
	// status at its next action boundary. The repository re-checks the stored
	// status atomically, so a loop that finalized in the meantime wins.
	cancelled, err := t.persistence.Instances().CancelIfActive(ctx, instanceID)
	if err != nil {
		return err
	}

	t.publishCancelled(ctx, cancelled)
	t.logger.Info("Instance cancelled", "instance_id", instanceID)

	return nil
}

func (t *Tracker) publishCancelled(ctx context.Context, instance *models.WorkflowInstance) {
	event := events.InstanceCancelled{
		BaseEvent: events.BaseEvent{
			ID:           t.eventBus.GenerateID(),
			Type:         events.InstanceCancelledEvent,
			Timestamp:    time.Now().UTC(),
			TenantID:     instance.TenantID,
			DefinitionID: instance.DefinitionID,
			InstanceID:   instance.ID,
		},
	}

	if err := t.eventBus.Publish(ctx, instance.ID, event); err != nil {
		t.logger.Warn("Failed to publish cancellation event", "instance_id", instance.ID, "error", err)
	}
}
